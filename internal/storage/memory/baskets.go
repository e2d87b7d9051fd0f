package memory

import (
	"context"
	"sync"

	"github.com/xenking/webshop/internal/domain/basket"
)

var _ basket.Repository = (*BasketRepository)(nil)

// BasketRepository implements basket.Repository in memory.
type BasketRepository struct {
	keys *keyLock
	mu   sync.RWMutex
	byID map[basket.ID]*basket.Basket
}

// NewBasketRepository returns an empty BasketRepository.
func NewBasketRepository() *BasketRepository {
	return &BasketRepository{
		keys: newKeyLock(),
		byID: make(map[basket.ID]*basket.Basket),
	}
}

func (r *BasketRepository) Get(_ context.Context, id basket.ID) (*basket.Basket, error) {
	b, ok := r.load(id)
	if !ok {
		return nil, basket.ErrNotFound
	}
	return b, nil
}

func (r *BasketRepository) Create(_ context.Context, b *basket.Basket) (*basket.Basket, error) {
	unlock := r.keys.Lock(string(b.ID))
	defer unlock()

	if existing, ok := r.load(b.ID); ok {
		return existing, nil
	}
	r.store(b)
	return b.Clone(), nil
}

func (r *BasketRepository) Update(_ context.Context, id basket.ID, fn func(b *basket.Basket) error) (*basket.Basket, error) {
	unlock := r.keys.Lock(string(id))
	defer unlock()

	b, ok := r.load(id)
	if !ok {
		b = &basket.Basket{ID: id}
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	r.store(b)
	return b, nil
}

// withLocked runs fn while holding the lock of basket id. fn receives a copy
// of the basket (empty if absent) and a commit func that stores its argument.
func (r *BasketRepository) withLocked(id basket.ID, fn func(b *basket.Basket, commit func(*basket.Basket)) error) error {
	unlock := r.keys.Lock(string(id))
	defer unlock()

	b, ok := r.load(id)
	if !ok {
		b = &basket.Basket{ID: id}
	}
	return fn(b, r.store)
}

func (r *BasketRepository) load(id basket.ID) (*basket.Basket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

func (r *BasketRepository) store(b *basket.Basket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[b.ID] = b.Clone()
}
