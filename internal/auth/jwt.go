package auth

import (
	"fmt"
	"strconv"
	"time"

	"bookstore/internal/domain/carts"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthenticator validates HS256 access tokens issued by the bookstore backend.
type JWTAuthenticator struct {
	secret string
	iss    string
}

func NewJWTAuthenticator(secret, iss string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret, iss: iss}
}

// GenerateToken signs an access token for userID. The backend normally issues tokens; this is
// used by tooling and tests.
func (a *JWTAuthenticator) GenerateToken(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}
	if a.iss != "" {
		claims["iss"] = a.iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(a.secret))
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

func (a *JWTAuthenticator) validate(token string) (*jwt.Token, error) {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(30 * time.Second),
	}
	if a.iss != "" {
		opts = append(opts, jwt.WithIssuer(a.iss))
	}
	return jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	}, opts...)
}

// Identify validates token and reads the user id from its sub claim. The raw token is kept
// on the identity so it can be forwarded to the backend.
func (a *JWTAuthenticator) Identify(token string) (carts.Identity, error) {
	jwtToken, err := a.validate(token)
	if err != nil {
		return carts.Guest, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := jwtToken.Claims.(jwt.MapClaims)
	if !ok {
		return carts.Guest, ErrInvalidToken
	}

	userID, err := subject(claims["sub"])
	if err != nil || userID <= 0 {
		return carts.Guest, fmt.Errorf("%w: bad sub claim", ErrInvalidToken)
	}
	return carts.Identity{UserID: userID, Token: token}, nil
}

// subject accepts the sub claim as a number or a numeric string.
func subject(v any) (int64, error) {
	switch sub := v.(type) {
	case float64:
		return int64(sub), nil
	case string:
		return strconv.ParseInt(sub, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected sub type %T", v)
	}
}
