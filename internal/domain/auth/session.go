package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrSessionNotFound is returned by SessionRepository when no session
// matches a token hash.
var ErrSessionNotFound = errors.New("session not found")

// Session binds an issued bearer token to a user until it expires or is
// revoked. Only the HMAC of the token is stored.
type Session struct {
	TokenHash string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the session is usable at the given instant.
func (s *Session) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// SessionRepository stores sessions keyed by token hash.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	FindByHash(ctx context.Context, hash string) (*Session, error)
	// Delete removes the session. Deleting an unknown hash is not an error.
	Delete(ctx context.Context, hash string) error
}

// SessionSweeper is implemented by session stores that can drop expired
// sessions in bulk.
type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}
