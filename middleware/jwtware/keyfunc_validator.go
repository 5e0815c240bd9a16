package jwtware

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// keyfuncValidator is the fallback TokenValidator used when the caller
// configures raw signing keys or JWK set URLs instead of a full
// validator. It parses with the configured keyfunc and exposes the
// registered claims through the AuthClaims interface.
type keyfuncValidator struct {
	keyFunc jwt.Keyfunc
}

func (v keyfuncValidator) Validate(tokenString string) (AuthClaims, error) {
	claims := &parsedClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc); err != nil {
		return nil, err
	}
	return claims, nil
}

// roleRank mirrors the role hierarchy used by the auth package. We keep
// a local copy here so the middleware stays importable on its own.
var roleRank = map[string]int{
	"user":       0,
	"guide":      1,
	"lead-guide": 2,
	"admin":      3,
}

type parsedClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
}

func (c *parsedClaims) Subject() string { return c.RegisteredClaims.Subject }

func (c *parsedClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

func (c *parsedClaims) Role() string { return c.UserRole }

func (c *parsedClaims) HasRole(role string) bool { return c.UserRole == role }

func (c *parsedClaims) IsAtLeast(minRole string) bool {
	have, ok := roleRank[c.UserRole]
	if !ok {
		return false
	}
	want, ok := roleRank[minRole]
	if !ok {
		return false
	}
	return have >= want
}

func (c *parsedClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

func (c *parsedClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
