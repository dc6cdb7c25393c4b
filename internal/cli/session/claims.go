package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the account role carried in the token
type Role string

const (
	RoleNone     Role = ""
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims are the token claims the client cares about
type Claims struct {
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
	UserID  string `json:"user_id"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a JWT without verifying its signature. The client has
// no key; the server re-verifies the token on every request.
func ParseClaims(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return &claims, nil
}

// Expired reports whether the exp claim is at or before now
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time)
}

// RoleOf maps the claims onto a Role. Unknown role names map to RoleNone.
func (c *Claims) RoleOf() Role {
	switch strings.ToLower(strings.TrimSpace(c.Role)) {
	case "admin":
		return RoleAdmin
	case "customer", "user":
		return RoleCustomer
	case "":
		if c.IsAdmin {
			return RoleAdmin
		}
	}
	return RoleNone
}

// checkToken returns the claims of a usable token
func checkToken(token string, now time.Time) (*Claims, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return nil, err
	}
	if claims.Expired(now) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}
