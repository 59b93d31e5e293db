// Package localcart persists the guest cart of one device/session slot.
package localcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bookstore/internal/domain/books"
	"bookstore/internal/domain/carts"

	"go.uber.org/zap"
)

// KeyPrefix is the fixed storage key of the guest cart; backends append the slot.
const KeyPrefix = "guest_cart"

// Store holds the whole guest cart of one slot. Save replaces prior contents.
type Store interface {
	Load(ctx context.Context) (carts.Cart, error)
	Save(ctx context.Context, c carts.Cart) error
	Clear(ctx context.Context) error
}

// Provider hands out the Store of a slot. A slot is one browser/device session.
type Provider interface {
	Slot(slot string) Store
}

// Key is the storage key for slot.
func Key(slot string) string {
	if slot == "" {
		return KeyPrefix
	}
	return KeyPrefix + ":" + slot
}

type storedLine struct {
	Book     json.RawMessage `json:"book"`
	Quantity int             `json:"quantity"`
}

// Encode serializes c as a JSON array of {book, quantity}.
func Encode(c carts.Cart) ([]byte, error) {
	lines := c.Lines
	if lines == nil {
		lines = []carts.Line{}
	}
	type line struct {
		Book     books.Book `json:"book"`
		Quantity int        `json:"quantity"`
	}
	out := make([]line, 0, len(lines))
	for _, l := range lines {
		out = append(out, line{Book: l.Book, Quantity: l.Quantity})
	}
	return json.Marshal(out)
}

// Decode parses stored guest cart data. Empty input is an empty cart. Any malformed
// content yields ErrCorruptLocalState. Duplicate book lines are folded together.
func Decode(data []byte) (carts.Cart, error) {
	if len(data) == 0 {
		return carts.Cart{}, nil
	}
	var raw []storedLine
	if err := json.Unmarshal(data, &raw); err != nil {
		return carts.Cart{}, fmt.Errorf("%w: %v", carts.ErrCorruptLocalState, err)
	}

	var c carts.Cart
	for i, r := range raw {
		var l carts.Line
		if err := json.Unmarshal(r.Book, &l.Book); err != nil {
			return carts.Cart{}, fmt.Errorf("%w: line %d: %v", carts.ErrCorruptLocalState, i, err)
		}
		if l.Book.ID <= 0 || r.Quantity < 1 {
			return carts.Cart{}, fmt.Errorf("%w: line %d: book %d quantity %d", carts.ErrCorruptLocalState, i, l.Book.ID, r.Quantity)
		}
		c.Upsert(l.Book, r.Quantity)
	}
	return c, nil
}

// recoverCorrupt turns corrupt stored data into an empty cart. Other errors pass through.
func recoverCorrupt(logger *zap.SugaredLogger, key string, c carts.Cart, err error) (carts.Cart, error) {
	if err == nil {
		return c, nil
	}
	if errors.Is(err, carts.ErrCorruptLocalState) {
		logger.Warnw("discarding corrupt guest cart", "key", key, "error", err)
		return carts.Cart{}, nil
	}
	return carts.Cart{}, err
}
