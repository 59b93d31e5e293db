package localcart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookstore/internal/domain/carts"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Querier is the subset of pgxpool.Pool / pgx.Tx the postgres backend needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres keeps guest carts in the guest_carts table. Expired rows read as empty.
type Postgres struct {
	db     Querier
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewPostgres(db Querier, ttl time.Duration, logger *zap.SugaredLogger) *Postgres {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Postgres{db: db, ttl: ttl, logger: logger}
}

// Migrate creates the guest_carts table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS guest_carts (
  slot       text PRIMARY KEY,
  lines      jsonb NOT NULL DEFAULT '[]'::jsonb,
  expires_at timestamptz,
  updated_at timestamptz NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("migrate guest_carts: %w", err)
	}
	return nil
}

// PurgeExpired deletes guest carts past their expiry.
func (p *Postgres) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := p.db.Exec(ctx, `
DELETE FROM guest_carts
WHERE expires_at IS NOT NULL
  AND expires_at <= now()
`)
	if err != nil {
		return 0, fmt.Errorf("purge guest carts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Slot(slot string) Store {
	return &postgresSlot{p: p, key: Key(slot)}
}

type postgresSlot struct {
	p   *Postgres
	key string
}

func (s *postgresSlot) Load(ctx context.Context) (carts.Cart, error) {
	var raw []byte
	err := s.p.db.QueryRow(ctx, `
SELECT lines
FROM guest_carts
WHERE slot = $1
  AND (expires_at IS NULL OR expires_at > now())
`, s.key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return carts.Cart{}, nil
	}
	if err != nil {
		return carts.Cart{}, fmt.Errorf("select guest cart: %w", err)
	}
	c, err := Decode(raw)
	return recoverCorrupt(s.p.logger, s.key, c, err)
}

func (s *postgresSlot) Save(ctx context.Context, c carts.Cart) error {
	raw, err := Encode(c)
	if err != nil {
		return err
	}
	_, err = s.p.db.Exec(ctx, `
INSERT INTO guest_carts (slot, lines, expires_at, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (slot)
DO UPDATE SET
  lines      = EXCLUDED.lines,
  expires_at = EXCLUDED.expires_at,
  updated_at = now()
`, s.key, raw, time.Now().Add(s.p.ttl))
	if err != nil {
		return fmt.Errorf("save guest cart: %w", err)
	}
	return nil
}

func (s *postgresSlot) Clear(ctx context.Context) error {
	if _, err := s.p.db.Exec(ctx, `DELETE FROM guest_carts WHERE slot = $1`, s.key); err != nil {
		return fmt.Errorf("clear guest cart: %w", err)
	}
	return nil
}
