package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bookstore/internal/auth"
	"bookstore/internal/domain/books"
	"bookstore/internal/domain/carts"
	"bookstore/internal/events"
	"bookstore/internal/localcart"
	"bookstore/internal/metrics"
	"bookstore/internal/ratelimiter"
	"bookstore/internal/remotecart"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type fakeBackend struct {
	mu      sync.Mutex
	catalog map[int64]books.Book
	carts   map[int64]carts.Cart
	down    bool
}

func newFakeBackend(catalog ...books.Book) *fakeBackend {
	b := &fakeBackend{catalog: make(map[int64]books.Book), carts: make(map[int64]carts.Cart)}
	for _, bk := range catalog {
		b.catalog[bk.ID] = bk
	}
	return b
}

func (b *fakeBackend) check(op string) error {
	if b.down {
		return &carts.NetworkError{Op: op, Status: http.StatusServiceUnavailable}
	}
	return nil
}

func (b *fakeBackend) Book(_ context.Context, id int64) (books.Book, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("get book"); err != nil {
		return books.Book{}, err
	}
	bk, ok := b.catalog[id]
	if !ok {
		return books.Book{}, remotecart.ErrBookNotFound
	}
	return bk, nil
}

func (b *fakeBackend) Fetch(_ context.Context, id carts.Identity) (carts.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("fetch cart"); err != nil {
		return carts.Cart{}, err
	}
	return b.carts[id.UserID].Clone(), nil
}

func (b *fakeBackend) AddLine(_ context.Context, id carts.Identity, bookID int64, qty int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("add cart line"); err != nil {
		return err
	}
	c := b.carts[id.UserID].Clone()
	c.Upsert(b.catalog[bookID], qty)
	b.carts[id.UserID] = c
	return nil
}

func (b *fakeBackend) SetQuantity(_ context.Context, id carts.Identity, bookID int64, qty int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("update cart line"); err != nil {
		return err
	}
	c := b.carts[id.UserID].Clone()
	c.Set(bookID, qty)
	b.carts[id.UserID] = c
	return nil
}

func (b *fakeBackend) RemoveLine(_ context.Context, id carts.Identity, bookID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("remove cart line"); err != nil {
		return err
	}
	c := b.carts[id.UserID].Clone()
	c.Remove(bookID)
	b.carts[id.UserID] = c
	return nil
}

func (b *fakeBackend) ReplaceAll(_ context.Context, id carts.Identity, lines []carts.Line) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("merge cart"); err != nil {
		return err
	}
	b.carts[id.UserID] = carts.Cart{Lines: lines}.Clone()
	return nil
}

func newTestApplication(t *testing.T, backend *fakeBackend) *application {
	t.Helper()
	logger := zap.NewNop().Sugar()
	m := metrics.NewRegistry()

	app := &application{
		config: config{
			env:         "test",
			usdRate:     25000,
			sessionIdle: time.Minute,
			auth: authConfig{
				basic: basicConfig{user: "admin", pass: "admin"},
				token: tokenConfig{secret: testSecret},
			},
			local:       localConfig{backend: "memory"},
			rateLimiter: ratelimiter.Config{Enabled: false},
		},
		logger:        logger,
		authenticator: auth.NewJWTAuthenticator(testSecret, ""),
		backend:       backend,
		local:         localcart.NewMemory(logger),
		events:        events.Nop{},
		metrics:       m,
	}
	app.sessions = newSessionRegistry(time.Minute, m, app.newCartController)
	return app
}

type client struct {
	t       *testing.T
	handler http.Handler
	session string
	token   string
}

type response struct {
	Status int
	Body   map[string]any
	Header http.Header
}

func (c *client) do(method, path string, body any) response {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.session != "" {
		req.Header.Set(sessionHeader, c.session)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	}
	if sid := rr.Header().Get(sessionHeader); sid != "" {
		c.session = sid
	}
	return response{Status: rr.Code, Body: decoded, Header: rr.Header()}
}

// quantities returns book id -> quantity of the items in a cart response.
func quantities(t *testing.T, res response) map[int64]int {
	t.Helper()
	data, ok := res.Body["data"].(map[string]any)
	require.True(t, ok, "response has no data: %v", res.Body)
	out := map[int64]int{}
	for _, it := range data["items"].([]any) {
		item := it.(map[string]any)
		book := item["book"].(map[string]any)
		out[int64(book["id"].(float64))] = int(item["quantity"].(float64))
	}
	return out
}

func token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := auth.NewJWTAuthenticator(testSecret, "").GenerateToken(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestHealthRequiresBasicAuth(t *testing.T) {
	app := newTestApplication(t, newFakeBackend())
	mux := app.mount()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.SetBasicAuth("admin", "admin")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGuestCartFlow(t *testing.T) {
	discount := int64(45_000)
	backend := newFakeBackend(
		books.Book{ID: 7, Title: "Dế Mèn", OriginalPrice: 50_000, DiscountPrice: &discount, Stock: 10},
		books.Book{ID: 9, Title: "Tắt Đèn", OriginalPrice: 70_000, Stock: 2},
	)
	c := &client{t: t, handler: newTestApplication(t, backend).mount()}

	res := c.do(http.MethodPost, "/v1/cart/items", map[string]any{"book_id": 7, "quantity": 2})
	require.Equal(t, http.StatusCreated, res.Status)
	assert.NotEmpty(t, c.session)
	assert.Equal(t, map[int64]int{7: 2}, quantities(t, res))

	data := res.Body["data"].(map[string]any)
	assert.Equal(t, "guest", data["state"])
	assert.Equal(t, 90_000.0, data["total"])
	assert.Equal(t, "90.000₫", data["total_display"])
	assert.Equal(t, 10_000.0, data["savings"])

	res = c.do(http.MethodPost, "/v1/cart/items", map[string]any{"book_id": 9, "quantity": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)

	res = c.do(http.MethodPatch, "/v1/cart/items/7", map[string]any{"delta": -10})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, map[int64]int{7: 1}, quantities(t, res))

	res = c.do(http.MethodDelete, "/v1/cart/items/7", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Empty(t, quantities(t, res))
}

func TestLoginMergesGuestCart(t *testing.T) {
	backend := newFakeBackend(
		books.Book{ID: 7, Title: "A", OriginalPrice: 50_000, Stock: 10},
		books.Book{ID: 9, Title: "B", OriginalPrice: 70_000, Stock: 10},
	)
	backend.carts[42] = carts.Cart{Lines: []carts.Line{
		{Book: backend.catalog[7], Quantity: 1},
		{Book: backend.catalog[9], Quantity: 3},
	}}
	c := &client{t: t, handler: newTestApplication(t, backend).mount()}

	res := c.do(http.MethodPost, "/v1/cart/items", map[string]any{"book_id": 7, "quantity": 2})
	require.Equal(t, http.StatusCreated, res.Status)

	c.token = token(t, 42)
	res = c.do(http.MethodGet, "/v1/cart", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, map[int64]int{7: 3, 9: 3}, quantities(t, res))

	data := res.Body["data"].(map[string]any)
	assert.Equal(t, "identified", data["state"])
	notices := data["notices"].([]any)
	require.Len(t, notices, 1)
	assert.Equal(t, "success", notices[0].(map[string]any)["level"])

	// Fetching again does not merge twice.
	res = c.do(http.MethodGet, "/v1/cart", nil)
	assert.Equal(t, map[int64]int{7: 3, 9: 3}, quantities(t, res))

	res = c.do(http.MethodPost, "/v1/session/logout", nil)
	require.Equal(t, http.StatusOK, res.Status)
	c.token = ""
	res = c.do(http.MethodGet, "/v1/cart", nil)
	assert.Empty(t, quantities(t, res))
	assert.Len(t, backend.carts[42].Lines, 2)
}

func TestQuote(t *testing.T) {
	discount := int64(45_000)
	backend := newFakeBackend(
		books.Book{ID: 1, Title: "A", OriginalPrice: 50_000, DiscountPrice: &discount, Stock: 10},
		books.Book{ID: 2, Title: "B", OriginalPrice: 120_000, Stock: 10},
	)
	c := &client{t: t, handler: newTestApplication(t, backend).mount()}
	c.do(http.MethodPost, "/v1/cart/items", map[string]any{"book_id": 1, "quantity": 2})
	c.do(http.MethodPost, "/v1/cart/items", map[string]any{"book_id": 2, "quantity": 1})

	res := c.do(http.MethodPost, "/v1/cart/quote", map[string]any{"book_ids": []int64{1, 2}, "payment_method": "paypal"})
	require.Equal(t, http.StatusOK, res.Status)
	data := res.Body["data"].(map[string]any)
	assert.Equal(t, 210_000.0, data["total"])
	assert.Equal(t, "USD", data["currency"])
	assert.Equal(t, "$8.40", data["display"])

	res = c.do(http.MethodPost, "/v1/cart/quote", map[string]any{"book_ids": []int64{1}, "payment_method": "cod"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "90.000₫", res.Body["data"].(map[string]any)["display"])

	res = c.do(http.MethodPost, "/v1/cart/quote", map[string]any{"book_ids": []int64{1}, "payment_method": "bitcoin"})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = c.do(http.MethodPost, "/v1/cart/quote", map[string]any{"book_ids": []int64{99}, "payment_method": "QR"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)
}

func TestCartErrors(t *testing.T) {
	backend := newFakeBackend(books.Book{ID: 1, Title: "A", OriginalPrice: 1000, Stock: 5})
	app := newTestApplication(t, backend)
	c := &client{t: t, handler: app.mount()}

	res := c.do(http.MethodPost, "/v1/cart/items", map[string]any{"book_id": 404, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = c.do(http.MethodPost, "/v1/cart/items", map[string]any{"book_id": 1, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = c.do(http.MethodPost, "/v1/cart/items", map[string]any{"book_id": 1, "quantity": 1, "extra": true})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, `body contains unknown field "extra"`, res.Body["message"])

	res = c.do(http.MethodPatch, "/v1/cart/items/abc", map[string]any{"delta": 1})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	c.token = "not-a-jwt"
	res = c.do(http.MethodGet, "/v1/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	c.token = token(t, 5)
	backend.down = true
	res = c.do(http.MethodGet, "/v1/cart", nil)
	assert.Equal(t, http.StatusBadGateway, res.Status)
	assert.Equal(t, false, res.Body["success"])
}

func TestSessionHeader(t *testing.T) {
	c := &client{t: t, handler: newTestApplication(t, newFakeBackend()).mount()}

	c.session = "not-a-uuid"
	res := c.do(http.MethodGet, "/v1/cart", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.NotEqual(t, "not-a-uuid", res.Header.Get(sessionHeader))

	first := c.session
	c.do(http.MethodGet, "/v1/cart", nil)
	assert.Equal(t, first, c.session)
}

func TestRateLimiterMiddleware(t *testing.T) {
	app := newTestApplication(t, newFakeBackend())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	app.config.rateLimiter = ratelimiter.Config{RequestsPerTimeFrame: 2, TimeFrame: time.Minute, Enabled: true}
	app.rateLimiter = ratelimiter.NewFixedWindowLimiter(ctx, 2, time.Minute)
	c := &client{t: t, handler: app.mount()}

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/cart", nil).Status)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/cart", nil).Status)
	res := c.do(http.MethodGet, "/v1/cart", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.Status)
	assert.NotEmpty(t, res.Header.Get("Retry-After"))
}
