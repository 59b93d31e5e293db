package localcart

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"bookstore/internal/domain/carts"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// Pebble keeps guest carts in an on-disk pebble database owned by this process.
type Pebble struct {
	db     *pebble.DB
	logger *zap.SugaredLogger
}

func OpenPebble(dir string, logger *zap.SugaredLogger) (*Pebble, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Pebble{db: db, logger: logger}, nil
}

func (p *Pebble) Close() error { return p.db.Close() }

func (p *Pebble) Slot(slot string) Store {
	return &pebbleSlot{p: p, key: []byte(Key(slot))}
}

type pebbleSlot struct {
	p   *Pebble
	key []byte
}

func (s *pebbleSlot) Load(ctx context.Context) (carts.Cart, error) {
	v, closer, err := s.p.db.Get(s.key)
	if errors.Is(err, pebble.ErrNotFound) {
		return carts.Cart{}, nil
	}
	if err != nil {
		return carts.Cart{}, fmt.Errorf("pebble get %s: %w", s.key, err)
	}
	raw := append([]byte(nil), v...)
	if err := closer.Close(); err != nil {
		s.p.logger.Warnw("pebble release value", "key", string(s.key), "error", err)
	}

	c, err := Decode(raw)
	return recoverCorrupt(s.p.logger, string(s.key), c, err)
}

func (s *pebbleSlot) Save(ctx context.Context, c carts.Cart) error {
	raw, err := Encode(c)
	if err != nil {
		return err
	}
	if err := s.p.db.Set(s.key, raw, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", s.key, err)
	}
	return nil
}

func (s *pebbleSlot) Clear(ctx context.Context) error {
	if err := s.p.db.Delete(s.key, pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete %s: %w", s.key, err)
	}
	return nil
}
