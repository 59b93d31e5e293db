package auth

import (
	"errors"

	"bookstore/internal/domain/carts"
)

var ErrInvalidToken = errors.New("invalid access token")

// Authenticator turns a bearer token into the identity of a cart session.
type Authenticator interface {
	Identify(token string) (carts.Identity, error)
}
