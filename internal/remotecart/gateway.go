package remotecart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"bookstore/internal/domain/books"
	"bookstore/internal/domain/carts"
)

var ErrBookNotFound = errors.New("book not found")

type cartDTO struct {
	ID     int64        `json:"id"`
	UserID int64        `json:"userId"`
	Items  []carts.Line `json:"items" validate:"dive"`
}

type mergeLine struct {
	Book     mergeBook `json:"book"`
	Quantity int       `json:"quantity"`
}

type mergeBook struct {
	ID int64 `json:"id"`
}

func userQuery(id carts.Identity) url.Values {
	q := url.Values{}
	q.Set("userId", strconv.FormatInt(id.UserID, 10))
	return q
}

// Fetch returns the user's cart; a user without a cart gets an empty one.
func (c *Client) Fetch(ctx context.Context, id carts.Identity) (carts.Cart, error) {
	var dto cartDTO
	err := c.do(ctx, request{
		op:     "fetch cart",
		method: http.MethodGet,
		path:   "/cart",
		query:  userQuery(id),
		token:  id.Token,
	}, &dto)
	if errors.Is(err, errNotFound) {
		return carts.Cart{}, nil
	}
	if err != nil {
		return carts.Cart{}, err
	}
	return c.normalize("fetch cart", dto)
}

// normalize validates a backend cart and folds duplicate book lines.
func (c *Client) normalize(op string, dto cartDTO) (carts.Cart, error) {
	if err := c.validate.Struct(dto); err != nil {
		return carts.Cart{}, &carts.NetworkError{Op: op, Err: fmt.Errorf("malformed cart payload: %w", err)}
	}
	var out carts.Cart
	for _, l := range dto.Items {
		if _, ok := out.Find(l.Book.ID); ok {
			out.Upsert(l.Book, l.Quantity)
			continue
		}
		out.Lines = append(out.Lines, l)
	}
	return out, nil
}

// AddLine asks the backend to add quantity units of a book. The backend checks live stock.
func (c *Client) AddLine(ctx context.Context, id carts.Identity, bookID int64, quantity int) error {
	q := userQuery(id)
	q.Set("bookId", strconv.FormatInt(bookID, 10))
	q.Set("quantity", strconv.Itoa(quantity))
	err := c.do(ctx, request{
		op:     "add cart line",
		method: http.MethodPost,
		path:   "/cart/add",
		query:  q,
		token:  id.Token,
	}, nil)
	return notFoundAsNetwork("add cart line", err)
}

// SetQuantity overwrites the quantity of a line. Callers clamp quantity beforehand.
func (c *Client) SetQuantity(ctx context.Context, id carts.Identity, bookID int64, quantity int) error {
	q := userQuery(id)
	q.Set("bookId", strconv.FormatInt(bookID, 10))
	q.Set("newQuantity", strconv.Itoa(quantity))
	err := c.do(ctx, request{
		op:     "update cart line",
		method: http.MethodPut,
		path:   "/cart/update",
		query:  q,
		token:  id.Token,
	}, nil)
	return notFoundAsNetwork("update cart line", err)
}

// RemoveLine deletes a line. A line the backend does not know is not an error.
func (c *Client) RemoveLine(ctx context.Context, id carts.Identity, bookID int64) error {
	q := userQuery(id)
	q.Set("bookId", strconv.FormatInt(bookID, 10))
	err := c.do(ctx, request{
		op:     "remove cart line",
		method: http.MethodDelete,
		path:   "/cart/remove",
		query:  q,
		token:  id.Token,
	}, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// ReplaceAll pushes a merged cart to the backend in one request.
func (c *Client) ReplaceAll(ctx context.Context, id carts.Identity, lines []carts.Line) error {
	body := make([]mergeLine, 0, len(lines))
	for _, l := range lines {
		body = append(body, mergeLine{Book: mergeBook{ID: l.Book.ID}, Quantity: l.Quantity})
	}
	err := c.do(ctx, request{
		op:     "merge cart",
		method: http.MethodPost,
		path:   "/cart/merge",
		query:  userQuery(id),
		token:  id.Token,
		body:   body,
	}, nil)
	return notFoundAsNetwork("merge cart", err)
}

func notFoundAsNetwork(op string, err error) error {
	if errors.Is(err, errNotFound) {
		return &carts.NetworkError{Op: op, Status: http.StatusNotFound, Err: err}
	}
	return err
}

// Book fetches the current catalog snapshot of a book.
func (c *Client) Book(ctx context.Context, bookID int64) (books.Book, error) {
	var b books.Book
	err := c.do(ctx, request{
		op:     "get book",
		method: http.MethodGet,
		path:   "/books/" + strconv.FormatInt(bookID, 10),
	}, &b)
	if errors.Is(err, errNotFound) {
		return books.Book{}, ErrBookNotFound
	}
	if err != nil {
		return books.Book{}, err
	}
	if b.ID == 0 {
		return books.Book{}, ErrBookNotFound
	}
	if err := c.validate.Struct(b); err != nil {
		return books.Book{}, &carts.NetworkError{Op: "get book", Err: fmt.Errorf("malformed book payload: %w", err)}
	}
	return b, nil
}
