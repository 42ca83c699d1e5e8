package auth

import (
	"errors"
	"time"
)

// Session is the persisted credential pair for a user. At most one row
// exists per user; issuing a new pair deletes any prior row first.
type Session struct {
	ID               string
	UserID           int64
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshDigest    string
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
}

// TokenPair is what callers receive from Issue and Refresh. The refresh
// token is returned in the clear exactly once; only its digest is stored.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Authentication failure kinds. A signed token alone cannot reflect
// server-side revocation, so Authenticate distinguishes a bad token from a
// revoked session and from a deactivated account.
var (
	ErrMissingToken     = errors.New("auth: missing token")
	ErrInvalidToken     = errors.New("auth: invalid or expired token")
	ErrSessionRevoked   = errors.New("auth: session expired or revoked")
	ErrAccountNotActive = errors.New("auth: account not active")
	ErrRefreshInvalid   = errors.New("auth: invalid or expired refresh token")
)
