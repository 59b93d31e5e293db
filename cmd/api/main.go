package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io/fs"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"bookstore/internal/auth"
	"bookstore/internal/db"
	"bookstore/internal/events"
	"bookstore/internal/localcart"
	"bookstore/internal/metrics"
	"bookstore/internal/pricing"
	"bookstore/internal/ratelimiter"
	"bookstore/internal/remotecart"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	defaultRequests := 200
	defaultEnabled := false

	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil && parsedVal > 0 {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}
}

// NewLogger creates a console zap logger with colored levels.
func NewLogger(level string) (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
		}
		lvl = parsed
	}

	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), lvl)
	return zap.New(core).Sugar(), nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		fmt.Printf("Invalid %s, defaulting to %d\n", key, def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		fmt.Printf("Invalid %s, defaulting to %s\n", key, def)
		return def
	}
	return d
}

func loadConfig() config {
	return config{
		addr:        envOr("ADDR", ":8080"),
		env:         envOr("ENV", "development"),
		logLevel:    envOr("LOG_LEVEL", "info"),
		backendURL:  envOr("BOOKSTORE_API_URL", "http://localhost:8081/api"),
		usdRate:     envInt("USD_EXCHANGE_RATE", pricing.DefaultUSDRate),
		sessionIdle: envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				iss:    os.Getenv("AUTH_TOKEN_ISS"),
			},
		},
		local: localConfig{
			backend:   strings.ToLower(envOr("LOCAL_CART_BACKEND", "memory")),
			pebbleDir: envOr("PEBBLE_DIR", "data/guest-carts"),
			redisAddr: envOr("REDIS_ADDR", "localhost:6379"),
			ttl:       envDuration("GUEST_CART_TTL", 7*24*time.Hour),
		},
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(envInt("DB_MAX_CONNS", 10)),
			maxIdleTime: envOr("DB_MAX_IDLE_TIME", "15m"),
		},
		kafka: kafkaConfig{
			brokers: os.Getenv("KAFKA_BROKERS"),
			topic:   envOr("KAFKA_CART_TOPIC", "cart-events"),
		},
		rateLimiter: LoadRateLimiterConfig(),
	}
}

// openLocalStore opens the guest cart backend named in cfg. The returned func releases it.
func openLocalStore(ctx context.Context, cfg config, logger *zap.SugaredLogger) (localcart.Provider, *pgxpool.Pool, func(), error) {
	switch cfg.local.backend {
	case "memory":
		return localcart.NewMemory(logger), nil, func() {}, nil
	case "pebble":
		p, err := localcart.OpenPebble(cfg.local.pebbleDir, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return p, nil, func() { _ = p.Close() }, nil
	case "redis":
		r := localcart.NewRedis(cfg.local.redisAddr, cfg.local.ttl, logger)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, nil, nil, err
		}
		return r, nil, func() { _ = r.Close() }, nil
	case "postgres":
		pool, err := db.New(ctx, cfg.db.addr, cfg.db.maxConns, cfg.db.maxIdleTime)
		if err != nil {
			return nil, nil, nil, err
		}
		pg := localcart.NewPostgres(pool, cfg.local.ttl, logger)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return pg, pool, pool.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown LOCAL_CART_BACKEND %q", cfg.local.backend)
	}
}

var version = "0.3.0"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}
	cfg := loadConfig()

	logger, err := NewLogger(cfg.logLevel)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.auth.token.secret == "" {
		logger.Fatal("AUTH_TOKEN_SECRET is required")
	}

	local, pool, closeLocal, err := openLocalStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("open guest cart store", "backend", cfg.local.backend, "error", err)
	}
	defer closeLocal()
	logger.Infow("guest cart store ready", "backend", cfg.local.backend)

	var publisher events.Publisher = events.Nop{}
	if cfg.kafka.brokers != "" {
		publisher = events.NewKafkaPublisher(cfg.kafka.brokers, cfg.kafka.topic)
		logger.Infow("publishing cart events", "brokers", cfg.kafka.brokers, "topic", cfg.kafka.topic)
	}
	defer publisher.Close()

	m := metrics.NewRegistry()

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		ctx,
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	app := &application{
		config:        cfg,
		logger:        logger,
		authenticator: auth.NewJWTAuthenticator(cfg.auth.token.secret, cfg.auth.token.iss),
		rateLimiter:   rateLimiter,
		backend:       remotecart.NewClient(cfg.backendURL, nil, m),
		local:         local,
		events:        publisher,
		metrics:       m,
	}
	app.sessions = newSessionRegistry(cfg.sessionIdle, m, app.newCartController)

	go app.evictIdleSessions(ctx, time.Minute)
	if pg, ok := local.(*localcart.Postgres); ok {
		go app.purgeExpiredGuestCarts(ctx, pg, time.Hour)
	}

	// http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("sessions", expvar.Func(func() any {
		return app.sessions.len()
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	if pool != nil {
		expvar.Publish("database", expvar.Func(func() any {
			s := pool.Stat()
			return map[string]int32{
				"total_conns":    s.TotalConns(),
				"idle_conns":     s.IdleConns(),
				"acquired_conns": s.AcquiredConns(),
			}
		}))
	}

	mux := app.mount()

	if err := app.run(mux); err != nil {
		logger.Errorw("server stopped", "error", err)
	}
}
