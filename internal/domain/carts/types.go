package carts

import "bookstore/internal/domain/books"

// Line is one product entry of a cart. Quantity is always >= 1.
type Line struct {
	ID       int64      `json:"id,omitempty"`
	Book     books.Book `json:"book" validate:"required"`
	Quantity int        `json:"quantity" validate:"gte=1"`
}

// Cart is a set of lines keyed by book id. Line order is preserved.
type Cart struct {
	Lines []Line `json:"items"`
}

// Identity is the session identity the controller acts for. The zero value is a guest.
type Identity struct {
	UserID int64
	Token  string
}

// Guest is the identity of an anonymous session.
var Guest = Identity{}

func (id Identity) IsGuest() bool {
	return id.UserID <= 0
}
