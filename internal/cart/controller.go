package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"bookstore/internal/domain/books"
	"bookstore/internal/domain/carts"
	"bookstore/internal/events"
	"bookstore/internal/localcart"
	"bookstore/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type State int

const (
	Guest State = iota
	Identified
)

func (s State) String() string {
	if s == Identified {
		return "identified"
	}
	return "guest"
}

type Options struct {
	Local      localcart.Store
	Remote     Gateway
	Reconciler *Reconciler
	Events     events.Publisher
	Notifier   Notifier
	Logger     *zap.SugaredLogger
	Metrics    *metrics.Registry
}

// Controller is the cart of one session. Guests use the local store, identified users the
// remote gateway.
//
// mu guards only the fields below it. Store and gateway calls run without the lock, so two
// racing updates settle on whichever response arrives last.
type Controller struct {
	local      localcart.Store
	remote     Gateway
	reconciler *Reconciler
	notifier   Notifier
	logger     *zap.SugaredLogger
	metrics    *metrics.Registry
	flight     singleflight.Group

	mu         sync.Mutex
	identity   carts.Identity
	generation uint64
	reconciled bool
	view       carts.Cart
}

func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Reconciler == nil {
		opts.Reconciler = NewReconciler(opts.Remote, opts.Local, opts.Events, opts.Logger, opts.Metrics)
	}
	return &Controller{
		local:      opts.Local,
		remote:     opts.Remote,
		reconciler: opts.Reconciler,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
}

// session is the identity an operation started under.
type session struct {
	id  carts.Identity
	gen uint64
}

func (c *Controller) current() session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return session{id: c.identity, gen: c.generation}
}

// setView replaces the view unless the identity changed since s was taken.
func (c *Controller) setView(s session, cart carts.Cart) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.gen != c.generation {
		return false
	}
	c.view = cart.Clone()
	return true
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity.IsGuest() {
		return Guest
	}
	return Identified
}

func (c *Controller) Identity() carts.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// View returns a copy of the current cart.
func (c *Controller) View() carts.Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Clone()
}

// SetIdentity moves the session to id. Switching from one user to another is a logout
// followed by a login.
func (c *Controller) SetIdentity(ctx context.Context, id carts.Identity) error {
	c.mu.Lock()
	prev := c.identity
	if prev.UserID == id.UserID || (prev.IsGuest() && id.IsGuest()) {
		c.identity.Token = id.Token
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if !prev.IsGuest() {
		c.Logout(ctx)
	}
	if id.IsGuest() {
		return nil
	}
	return c.Login(ctx, id)
}

// Login identifies the session and reconciles any guest cart into the user's cart.
func (c *Controller) Login(ctx context.Context, id carts.Identity) error {
	if id.IsGuest() {
		return carts.NewValidationError("login requires a user id")
	}
	c.mu.Lock()
	c.identity = id
	c.generation++
	c.reconciled = false
	c.mu.Unlock()

	c.logger.Infow("cart session identified", "user_id", id.UserID)
	return c.FetchCart(ctx)
}

// Logout returns the session to guest with a fresh empty cart. The user's remote cart is
// not touched.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	userID := c.identity.UserID
	c.identity = carts.Guest
	c.generation++
	c.reconciled = false
	c.view = carts.Cart{}
	c.mu.Unlock()

	if err := c.local.Clear(ctx); err != nil {
		c.logger.Warnw("clear guest cart on logout", "error", err)
	}
	c.logger.Infow("cart session logged out", "user_id", userID)
}

// FetchCart reloads the view from the active store. The first fetch of an identified session
// reconciles the guest cart. Concurrent first fetches share one reconciliation.
func (c *Controller) FetchCart(ctx context.Context) error {
	s := c.current()
	if s.id.IsGuest() {
		cart, err := c.local.Load(ctx)
		if err != nil {
			return c.fail(ctx, "load guest cart", err)
		}
		c.setView(s, cart)
		return nil
	}

	if !c.isReconciled(s) {
		_, err, _ := c.flight.Do(strconv.FormatUint(s.gen, 10), func() (any, error) {
			return nil, c.reconcile(ctx, s)
		})
		if err != nil {
			return c.fail(ctx, "merge guest cart", err)
		}
		return nil
	}

	cart, err := c.remote.Fetch(ctx, s.id)
	if err != nil {
		return c.fail(ctx, "fetch cart", err)
	}
	c.setView(s, cart)
	return nil
}

func (c *Controller) isReconciled(s session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.gen == c.generation && c.reconciled
}

// reconcile runs inside the flight for s. A flight that starts after an earlier one already
// merged only reloads the remote cart.
func (c *Controller) reconcile(ctx context.Context, s session) error {
	if c.isReconciled(s) {
		cart, err := c.remote.Fetch(ctx, s.id)
		if err != nil {
			return err
		}
		c.setView(s, cart)
		return nil
	}

	res, err := c.reconciler.Reconcile(ctx, s.id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if s.gen == c.generation {
		c.reconciled = true
		c.view = res.Cart.Clone()
	}
	c.mu.Unlock()
	if res.Merged {
		c.notify(ctx, LevelSuccess, fmt.Sprintf("Added %d item(s) from your guest cart", res.GuestLines))
	}
	return nil
}

// AddToCart adds quantity copies of book. It is refused when the cart would then hold more
// copies than are available. Guests are checked against the stored cart, which other
// replicas may have written.
func (c *Controller) AddToCart(ctx context.Context, book books.Book, quantity int) error {
	if quantity < 1 {
		return c.fail(ctx, "add to cart", carts.NewValidationError("quantity must be at least 1"))
	}

	s := c.current()
	if s.id.IsGuest() {
		cart, err := c.local.Load(ctx)
		if err != nil {
			return c.fail(ctx, "add to cart", err)
		}
		if err := c.checkStock(ctx, book, cart.Quantity(book.ID), quantity); err != nil {
			c.setView(s, cart)
			return err
		}
		cart.Upsert(book, quantity)
		if err := c.local.Save(ctx, cart); err != nil {
			return c.fail(ctx, "add to cart", err)
		}
		c.setView(s, cart)
		c.notify(ctx, LevelSuccess, fmt.Sprintf("Added %q to cart", book.Title))
		return nil
	}

	c.mu.Lock()
	existing := c.view.Quantity(book.ID)
	c.mu.Unlock()
	if err := c.checkStock(ctx, book, existing, quantity); err != nil {
		return err
	}

	if err := c.remote.AddLine(ctx, s.id, book.ID, quantity); err != nil {
		return c.fail(ctx, "add to cart", err)
	}
	c.notify(ctx, LevelSuccess, fmt.Sprintf("Added %q to cart", book.Title))
	c.refresh(ctx, s)
	return nil
}

func (c *Controller) checkStock(ctx context.Context, book books.Book, existing, quantity int) error {
	if existing+quantity <= book.Available() {
		return nil
	}
	c.metrics.StockRejected()
	c.logger.Infow("add to cart over stock", "book_id", book.ID, "in_cart", existing, "requested", quantity, "available", book.Available())
	return c.fail(ctx, "add to cart", carts.NewValidationError("only %d copies of %q are available", max(book.Available(), 0), book.Title))
}

// UpdateQuantity moves a line by delta, never below one. The view changes before the store
// answers and is reloaded from the store if the write fails. A line missing from the view is
// looked up in the active store first; lines unknown there are ignored.
func (c *Controller) UpdateQuantity(ctx context.Context, bookID int64, delta int) error {
	s := c.current()
	c.mu.Lock()
	_, inView := c.view.Find(bookID)
	c.mu.Unlock()
	if !inView {
		cart, err := c.load(ctx, s)
		if err != nil {
			return c.fail(ctx, "update quantity", err)
		}
		c.setView(s, cart)
		if _, ok := cart.Find(bookID); !ok {
			return nil
		}
	}

	c.mu.Lock()
	line, ok := c.view.Find(bookID)
	if !ok || s.gen != c.generation {
		c.mu.Unlock()
		return nil
	}
	quantity := max(1, line.Quantity+delta)
	c.view.Set(bookID, quantity)
	c.mu.Unlock()

	if s.id.IsGuest() {
		err := c.saveLocal(ctx, func(cart *carts.Cart) { cart.Set(bookID, quantity) })
		if err != nil {
			c.resync(ctx, s, "local")
			return c.fail(ctx, "update quantity", err)
		}
		return nil
	}

	if err := c.remote.SetQuantity(ctx, s.id, bookID, quantity); err != nil {
		c.resync(ctx, s, "remote")
		return c.fail(ctx, "update quantity", err)
	}
	return nil
}

// RemoveFromCart deletes the line for bookID. Removing an absent line is a no-op.
func (c *Controller) RemoveFromCart(ctx context.Context, bookID int64) error {
	s := c.current()
	if s.id.IsGuest() {
		err := c.saveLocal(ctx, func(cart *carts.Cart) { cart.Remove(bookID) })
		if err != nil {
			return c.fail(ctx, "remove from cart", err)
		}
		return nil
	}

	if err := c.remote.RemoveLine(ctx, s.id, bookID); err != nil {
		return c.fail(ctx, "remove from cart", err)
	}
	c.refresh(ctx, s)
	return nil
}

// saveLocal applies fn to the stored guest cart and publishes the result as the view.
func (c *Controller) saveLocal(ctx context.Context, fn func(*carts.Cart)) error {
	s := c.current()
	cart, err := c.local.Load(ctx)
	if err != nil {
		return err
	}
	fn(&cart)
	if err := c.local.Save(ctx, cart); err != nil {
		return err
	}
	c.setView(s, cart)
	return nil
}

// refresh reloads the remote cart after a successful write. A failed reload leaves the view
// stale until the next fetch.
func (c *Controller) refresh(ctx context.Context, s session) {
	cart, err := c.remote.Fetch(ctx, s.id)
	if err != nil {
		c.logger.Warnw("refresh cart after write", "user_id", s.id.UserID, "error", err)
		return
	}
	c.setView(s, cart)
}

// load reads the cart from the store that is active for s.
func (c *Controller) load(ctx context.Context, s session) (carts.Cart, error) {
	if s.id.IsGuest() {
		return c.local.Load(ctx)
	}
	return c.remote.Fetch(ctx, s.id)
}

// resync restores the view from the source of truth after a failed optimistic write.
func (c *Controller) resync(ctx context.Context, s session, store string) {
	cart, err := c.load(ctx, s)
	if err != nil {
		c.logger.Warnw("resync cart view", "store", store, "error", err)
		return
	}
	if c.setView(s, cart) {
		c.metrics.Resynced(store)
	}
}

func (c *Controller) notify(ctx context.Context, level Level, msg string) {
	c.notifier.Notify(ctx, Notice{Level: level, Message: msg})
}

// fail reports err to the shopper and returns it. Rejections are warnings, everything else
// is an error.
func (c *Controller) fail(ctx context.Context, op string, err error) error {
	var vErr *carts.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.notify(ctx, LevelWarning, vErr.Reason)
	case errors.Is(err, carts.ErrNetwork):
		c.logger.Warnw(op, "error", err)
		c.notify(ctx, LevelError, "The bookstore is unreachable, please try again")
	default:
		c.logger.Errorw(op, "error", err)
		c.notify(ctx, LevelError, "Something went wrong with your cart")
	}
	return err
}
