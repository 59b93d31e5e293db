package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bookstore/internal/cart"
	"bookstore/internal/domain/books"
	"bookstore/internal/params"
	"bookstore/internal/pricing"
	"bookstore/internal/remotecart"

	"github.com/go-chi/chi/v5"
)

type cartLineView struct {
	Book          books.Book `json:"book"`
	Quantity      int        `json:"quantity"`
	UnitPrice     int64      `json:"unit_price"`
	OriginalPrice int64      `json:"original_price"`
	Discounted    bool       `json:"discounted"`
	LineTotal     int64      `json:"line_total"`
	Display       string     `json:"display"`
}

type cartView struct {
	State        string            `json:"state"`
	Items        []cartLineView    `json:"items"`
	ItemCount    int               `json:"item_count"`
	Savings      int64             `json:"savings"`
	Total        int64             `json:"total"`
	TotalDisplay string            `json:"total_display"`
	Pagination   params.Pagination `json:"pagination"`
	Notices      []cart.Notice     `json:"notices"`
}

func newCartView(s *session, p params.Pagination) cartView {
	c := s.ctrl.View()

	var savings int64
	for _, l := range c.Lines {
		savings += pricing.Savings(l)
	}
	total := pricing.Total(c.Lines)

	page := params.Slice(c.Lines, &p)
	items := make([]cartLineView, 0, len(page))
	for _, l := range page {
		items = append(items, cartLineView{
			Book:          l.Book,
			Quantity:      l.Quantity,
			UnitPrice:     pricing.EffectivePrice(l.Book),
			OriginalPrice: l.Book.OriginalPrice,
			Discounted:    pricing.HasDiscount(l.Book),
			LineTotal:     pricing.LineTotal(l),
			Display:       pricing.FormatVND(pricing.LineTotal(l)),
		})
	}

	notices := s.inbox.Drain()
	if notices == nil {
		notices = []cart.Notice{}
	}
	return cartView{
		State:        s.ctrl.State().String(),
		Items:        items,
		ItemCount:    c.ItemCount(),
		Savings:      savings,
		Total:        total,
		TotalDisplay: pricing.FormatVND(total),
		Pagination:   p,
		Notices:      notices,
	}
}

func (app *application) writeCart(w http.ResponseWriter, r *http.Request, s *session, status int) {
	view := newCartView(s, params.ParsePagination(r.URL.Query()))
	if err := app.jsonResponse(w, status, view); err != nil {
		app.internalServerError(w, r, err)
	}
}

// failCart drops the notices the failure produced; the error body carries the message.
func (app *application) failCart(w http.ResponseWriter, r *http.Request, s *session, err error) {
	s.inbox.Drain()
	app.cartErrorResponse(w, r, err)
}

func bookIDParam(r *http.Request) (int64, error) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookID"), 10, 64)
	if err != nil || bookID <= 0 {
		return 0, fmt.Errorf("invalid bookID")
	}
	return bookID, nil
}

// GetCart godoc
//
//	@Summary	Current cart of the session
//	@Tags		Cart
//	@Produce	json
//	@Param		page	query		int	false	"Page"
//	@Param		limit	query		int	false	"Items per page"
//	@Success	200		{object}	cartView
//	@Failure	502		{object}	error
//	@Router		/cart [get]
func (app *application) getCartHandler(w http.ResponseWriter, r *http.Request) {
	s := getSessionFromContext(r)
	if err := s.ctrl.FetchCart(r.Context()); err != nil {
		app.failCart(w, r, s, err)
		return
	}
	app.writeCart(w, r, s, http.StatusOK)
}

type addCartItemPayload struct {
	BookID   int64 `json:"book_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gte=1,lte=999"`
}

// AddCartItem godoc
//
//	@Summary	Add copies of a book to the cart
//	@Tags		Cart
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		addCartItemPayload	true	"Book and quantity"
//	@Success	201		{object}	cartView
//	@Failure	400		{object}	error
//	@Failure	404		{object}	error	"Unknown book"
//	@Failure	422		{object}	error	"Not enough stock"
//	@Failure	502		{object}	error
//	@Router		/cart/items [post]
func (app *application) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var payload addCartItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	s := getSessionFromContext(r)
	ctx := r.Context()

	// Stock is checked against a fresh catalog snapshot, not the one stored in the cart.
	book, err := app.backend.Book(ctx, payload.BookID)
	if errors.Is(err, remotecart.ErrBookNotFound) {
		app.notFoundResponse(w, r, err)
		return
	}
	if err != nil {
		app.failCart(w, r, s, err)
		return
	}
	if book.IsDeleted {
		app.notFoundResponse(w, r, fmt.Errorf("book %d is deleted", book.ID))
		return
	}

	if err := s.ctrl.AddToCart(ctx, book, payload.Quantity); err != nil {
		app.failCart(w, r, s, err)
		return
	}
	app.writeCart(w, r, s, http.StatusCreated)
}

type updateCartItemPayload struct {
	Delta int `json:"delta" validate:"required"`
}

// UpdateCartItem godoc
//
//	@Summary	Change the quantity of a line by delta; it never drops below one
//	@Tags		Cart
//	@Accept		json
//	@Produce	json
//	@Param		bookID	path		int						true	"Book ID"
//	@Param		payload	body		updateCartItemPayload	true	"Quantity delta"
//	@Success	200		{object}	cartView
//	@Failure	400		{object}	error
//	@Failure	502		{object}	error
//	@Router		/cart/items/{bookID} [patch]
func (app *application) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	bookID, err := bookIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	var payload updateCartItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	s := getSessionFromContext(r)
	if err := s.ctrl.UpdateQuantity(r.Context(), bookID, payload.Delta); err != nil {
		app.failCart(w, r, s, err)
		return
	}
	app.writeCart(w, r, s, http.StatusOK)
}

// RemoveCartItem godoc
//
//	@Summary	Remove a book from the cart
//	@Tags		Cart
//	@Produce	json
//	@Param		bookID	path		int	true	"Book ID"
//	@Success	200		{object}	cartView
//	@Failure	502		{object}	error
//	@Router		/cart/items/{bookID} [delete]
func (app *application) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	bookID, err := bookIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	s := getSessionFromContext(r)
	if err := s.ctrl.RemoveFromCart(r.Context(), bookID); err != nil {
		app.failCart(w, r, s, err)
		return
	}
	app.writeCart(w, r, s, http.StatusOK)
}

type quotePayload struct {
	BookIDs       []int64 `json:"book_ids" validate:"required,min=1,dive,gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required,paymentmethod"`
}

// Quote godoc
//
//	@Summary		Price the selected lines for a payment method
//	@Description	COD and QR are charged in dong, PAYPAL in dollars at the configured rate.
//	@Tags			Cart
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		quotePayload	true	"Selected books and payment method"
//	@Success		200		{object}	pricing.Quote
//	@Failure		400		{object}	error
//	@Failure		422		{object}	error
//	@Router			/cart/quote [post]
func (app *application) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var payload quotePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	method, err := pricing.ParseMethod(payload.PaymentMethod)
	if err != nil {
		app.cartErrorResponse(w, r, err)
		return
	}

	s := getSessionFromContext(r)
	if err := s.ctrl.FetchCart(r.Context()); err != nil {
		app.failCart(w, r, s, err)
		return
	}
	quote, err := pricing.NewQuote(s.ctrl.View(), payload.BookIDs, method, app.config.usdRate)
	if err != nil {
		app.cartErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, quote); err != nil {
		app.internalServerError(w, r, err)
	}
}

// Logout godoc
//
//	@Summary	End the signed-in cart session; the user's saved cart is kept
//	@Tags		Session
//	@Produce	json
//	@Success	200	{object}	cartView
//	@Router		/session/logout [post]
func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s := getSessionFromContext(r)
	if s.ctrl.State() == cart.Identified {
		s.ctrl.Logout(r.Context())
	}
	app.writeCart(w, r, s, http.StatusOK)
}

