package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/webshop/internal/domain/auth"
)

var _ auth.SessionRepository = (*SessionRepository)(nil)

// SessionRepository implements auth.SessionRepository in memory. Expired
// sessions stay until DeleteExpired runs; the auth guard rejects them on
// lookup.
type SessionRepository struct {
	mu     sync.RWMutex
	byHash map[string]auth.Session
}

// NewSessionRepository returns an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{byHash: make(map[string]auth.Session)}
}

func (r *SessionRepository) Create(_ context.Context, s *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[s.TokenHash] = *s
	return nil
}

func (r *SessionRepository) FindByHash(_ context.Context, hash string) (*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byHash[hash]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	return &s, nil
}

func (r *SessionRepository) Delete(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byHash, hash)
	return nil
}

// DeleteExpired removes sessions past their expiry and returns how many
// were removed.
func (r *SessionRepository) DeleteExpired(context.Context) (int64, error) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, s := range r.byHash {
		if !s.Active(now) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}
