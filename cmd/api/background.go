package main

import (
	"context"
	"time"

	"bookstore/internal/localcart"
)

func (app *application) evictIdleSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.sessions.evictIdle(); n > 0 {
				app.logger.Infow("evicted idle cart sessions", "count", n, "remaining", app.sessions.len())
			}
		}
	}
}

func (app *application) purgeExpiredGuestCarts(ctx context.Context, pg *localcart.Postgres, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.PurgeExpired(ctx)
			if err != nil {
				app.logger.Errorw("purge expired guest carts", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Infow("purged expired guest carts", "count", n)
			}
		}
	}
}
