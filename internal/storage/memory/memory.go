// Package memory implements every webshop repository in process memory.
//
// Values are copied on the way in and out, so callers never share state with
// the store. Read-modify-write operations hold a per-key lock for the
// duration of the callback only; there is no store-wide lock.
package memory

import "context"

// Store bundles the in-memory repositories. Repositories share nothing but
// the basket table, which both baskets and order checkout lock per basket id.
type Store struct {
	Users    *UserRepository
	Sessions *SessionRepository
	Articles *ArticleRepository
	Baskets  *BasketRepository
	Orders   *OrderRepository
}

// New creates an empty Store.
func New() *Store {
	baskets := NewBasketRepository()
	return &Store{
		Users:    NewUserRepository(),
		Sessions: NewSessionRepository(),
		Articles: NewArticleRepository(),
		Baskets:  baskets,
		Orders:   NewOrderRepository(baskets),
	}
}

// Ping always succeeds; it lets the store act as a readiness check target.
func (s *Store) Ping(context.Context) error {
	return nil
}
