package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"bookstore/internal/domain/carts"

	"github.com/google/uuid"
)

const sessionHeader = "X-Cart-Session"

type ctxKey string

const sessionCtx ctxKey = "cartSession"

func (app *application) BasicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Basic" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is malformed"))
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				app.unauthorizedBasicErrorResponse(w, r, err)
				return
			}

			username := app.config.auth.basic.user
			pass := app.config.auth.basic.pass

			creds := strings.SplitN(string(decoded), ":", 2)
			if username == "" || len(creds) != 2 || creds[0] != username || creds[1] != pass {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("invalid credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (app *application) RateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allow, retryAfter := app.rateLimiter.Allow(r.RemoteAddr); !allow {
			app.rateLimitExceededResponse(w, r, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// identityFromRequest reads the optional bearer token. No header means a guest.
func (app *application) identityFromRequest(r *http.Request) (carts.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return carts.Guest, nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return carts.Guest, fmt.Errorf("authorization header is malformed")
	}
	return app.authenticator.Identify(parts[1])
}

// CartSessionMiddleware attaches the cart session named by X-Cart-Session, minting one when
// the header is missing, and moves it to the identity carried by the request.
func (app *application) CartSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := app.identityFromRequest(r)
		if err != nil {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}

		sid := r.Header.Get(sessionHeader)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
		}
		w.Header().Set(sessionHeader, sid)

		ctx := r.Context()
		s := app.sessions.get(sid)

		// A failed login merge is reported through the session notices and retried on the
		// next fetch.
		if err := s.ctrl.SetIdentity(ctx, id); err != nil {
			app.logger.Warnw("cart session identity change", "session", sid, "user_id", id.UserID, "error", err)
		}

		ctx = context.WithValue(ctx, sessionCtx, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getSessionFromContext(r *http.Request) *session {
	s, _ := r.Context().Value(sessionCtx).(*session)
	return s
}
