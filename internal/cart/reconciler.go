// Package cart holds the per-session cart controller and the guest cart reconciliation run at login.
package cart

import (
	"context"
	"fmt"

	"bookstore/internal/domain/carts"
	"bookstore/internal/events"
	"bookstore/internal/localcart"
	"bookstore/internal/metrics"

	"go.uber.org/zap"
)

// Gateway is the remote store of user carts.
type Gateway interface {
	Fetch(ctx context.Context, id carts.Identity) (carts.Cart, error)
	AddLine(ctx context.Context, id carts.Identity, bookID int64, quantity int) error
	SetQuantity(ctx context.Context, id carts.Identity, bookID int64, quantity int) error
	RemoveLine(ctx context.Context, id carts.Identity, bookID int64) error
	ReplaceAll(ctx context.Context, id carts.Identity, lines []carts.Line) error
}

type Result struct {
	Cart       carts.Cart
	Merged     bool
	GuestLines int
}

// Reconciler folds a guest cart into a user's remote cart.
type Reconciler struct {
	remote    Gateway
	local     localcart.Store
	publisher events.Publisher
	logger    *zap.SugaredLogger
	metrics   *metrics.Registry
}

func NewReconciler(remote Gateway, local localcart.Store, publisher events.Publisher, logger *zap.SugaredLogger, m *metrics.Registry) *Reconciler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Reconciler{
		remote:    remote,
		local:     local,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

// Reconcile merges the guest cart into the remote cart of id, commits the result and clears
// the guest cart. When the fetch or the commit fails the guest cart is left as it was.
func (r *Reconciler) Reconcile(ctx context.Context, id carts.Identity) (Result, error) {
	remote, err := r.remote.Fetch(ctx, id)
	if err != nil {
		r.metrics.Merge("failed")
		return Result{}, fmt.Errorf("reconcile: fetch remote cart: %w", err)
	}

	local, err := r.local.Load(ctx)
	if err != nil {
		r.metrics.Merge("failed")
		return Result{}, fmt.Errorf("reconcile: load guest cart: %w", err)
	}
	if local.IsEmpty() {
		r.metrics.Merge("skipped")
		return Result{Cart: remote}, nil
	}

	merged := carts.Merge(remote, local)
	if err := r.remote.ReplaceAll(ctx, id, merged.Lines); err != nil {
		r.metrics.Merge("failed")
		r.logger.Warnw("guest cart merge rejected, guest cart kept", "user_id", id.UserID, "lines", len(local.Lines), "error", err)
		return Result{}, fmt.Errorf("reconcile: commit merged cart: %w", err)
	}

	// The remote cart already holds the guest lines, so a failed clear is only logged.
	if err := r.local.Clear(ctx); err != nil {
		r.logger.Errorw("clear guest cart after merge", "user_id", id.UserID, "error", err)
	}

	r.metrics.Merge("merged")
	r.logger.Infow("guest cart merged", "user_id", id.UserID, "guest_lines", len(local.Lines), "lines", len(merged.Lines))
	r.publish(ctx, id, len(local.Lines), merged)

	return Result{Cart: merged, Merged: true, GuestLines: len(local.Lines)}, nil
}

func (r *Reconciler) publish(ctx context.Context, id carts.Identity, guestLines int, merged carts.Cart) {
	e := events.CartMerged{
		UserID:     id.UserID,
		GuestLines: guestLines,
		Lines:      make([]events.MergedLine, 0, len(merged.Lines)),
	}
	for _, l := range merged.Lines {
		e.Lines = append(e.Lines, events.MergedLine{BookID: l.Book.ID, Quantity: l.Quantity})
	}
	if err := r.publisher.CartMerged(ctx, e); err != nil {
		r.logger.Warnw("publish cart merged event", "user_id", id.UserID, "error", err)
	}
}
