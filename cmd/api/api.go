package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookstore/internal/auth"
	"bookstore/internal/cart"
	"bookstore/internal/domain/books"
	"bookstore/internal/events"
	"bookstore/internal/localcart"
	"bookstore/internal/metrics"
	"bookstore/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// backend is the bookstore service: user carts plus the book catalog.
type backend interface {
	cart.Gateway
	Book(ctx context.Context, bookID int64) (books.Book, error)
}

type application struct {
	config        config
	logger        *zap.SugaredLogger
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	backend       backend
	local         localcart.Provider
	events        events.Publisher
	metrics       *metrics.Registry
	sessions      *sessionRegistry
}

type config struct {
	addr        string
	env         string
	logLevel    string
	backendURL  string
	usdRate     int64
	sessionIdle time.Duration
	auth        authConfig
	local       localConfig
	db          dbConfig
	kafka       kafkaConfig
	rateLimiter ratelimiter.Config
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	iss    string
}

type basicConfig struct {
	user string
	pass string
}

type localConfig struct {
	backend   string
	pebbleDir string
	redisAddr string
	ttl       time.Duration
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type kafkaConfig struct {
	brokers string
	topic   string
}

func (app *application) newCartController(sessionID string, inbox *cart.Inbox) *cart.Controller {
	return cart.NewController(cart.Options{
		Local:    app.local.Slot(sessionID),
		Remote:   app.backend,
		Events:   app.events,
		Notifier: inbox,
		Logger:   app.logger.With("session", sessionID),
		Metrics:  app.metrics,
	})
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", sessionHeader},
		ExposedHeaders:   []string{sessionHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if app.config.rateLimiter.Enabled {
		r.Use(app.RateLimiterMiddleware)
	}

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
		r.With(app.BasicAuthMiddleware()).Handle("/metrics", app.metrics.Handler())

		r.Group(func(r chi.Router) {
			r.Use(app.CartSessionMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", app.getCartHandler)
				r.Post("/items", app.addCartItemHandler)
				r.Patch("/items/{bookID}", app.updateCartItemHandler)
				r.Delete("/items/{bookID}", app.removeCartItemHandler)
				r.Post("/quote", app.quoteHandler)
			})
			r.Post("/session/logout", app.logoutHandler)
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env, "local_store", app.config.local.backend)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
