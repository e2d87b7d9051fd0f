package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/webshop/internal/domain/auth"
)

const (
	createSessionSQL = `INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`

	getSessionByHashSQL = `SELECT token_hash, user_id, created_at, expires_at
		FROM sessions WHERE token_hash = $1`

	deleteSessionSQL = `DELETE FROM sessions WHERE token_hash = $1`

	deleteExpiredSessionsSQL = `DELETE FROM sessions WHERE expires_at <= now()`
)

var _ auth.SessionRepository = (*SessionRepository)(nil)

// SessionRepository implements auth.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *auth.Session) error {
	if _, err := r.pool.Exec(ctx, createSessionSQL, s.TokenHash, s.UserID, s.CreatedAt, s.ExpiresAt); err != nil {
		return errors.Wrap(err, "insert session")
	}
	return nil
}

func (r *SessionRepository) FindByHash(ctx context.Context, hash string) (*auth.Session, error) {
	var s auth.Session
	err := r.pool.QueryRow(ctx, getSessionByHashSQL, hash).Scan(&s.TokenHash, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find session")
	}
	return &s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, hash string) error {
	if _, err := r.pool.Exec(ctx, deleteSessionSQL, hash); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns how many
// were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteExpiredSessionsSQL)
	if err != nil {
		return 0, errors.Wrap(err, "delete expired sessions")
	}
	return tag.RowsAffected(), nil
}
