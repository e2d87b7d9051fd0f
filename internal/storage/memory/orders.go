package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository in memory.
type OrderRepository struct {
	baskets *BasketRepository
	keys    *keyLock
	mu      sync.RWMutex
	byID    map[string]order.Order
}

// NewOrderRepository returns an empty OrderRepository that checks out from
// the given baskets.
func NewOrderRepository(baskets *BasketRepository) *OrderRepository {
	return &OrderRepository{
		baskets: baskets,
		keys:    newKeyLock(),
		byID:    make(map[string]order.Order),
	}
}

// Checkout builds an order from the locked basket, stores it and clears the
// basket before the basket lock is released.
func (r *OrderRepository) Checkout(_ context.Context, basketID basket.ID, build func(b *basket.Basket) (*order.Order, error)) (*order.Order, error) {
	var placed *order.Order
	err := r.baskets.withLocked(basketID, func(b *basket.Basket, commit func(*basket.Basket)) error {
		o, err := build(b.Clone())
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.byID[o.ID] = cloneOrder(*o)
		r.mu.Unlock()

		b.Clear()
		b.UpdatedAt = o.CreatedAt
		commit(b)
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	c := cloneOrder(o)
	return &c, nil
}

func (r *OrderRepository) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	r.mu.RLock()
	out := make([]order.Order, 0)
	for _, o := range r.byID {
		if f.OwnerID != "" && o.OwnerID != f.OwnerID {
			continue
		}
		if o.Deleted && !f.IncludeDeleted {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *OrderRepository) Update(ctx context.Context, id string, fn func(o *order.Order) error) (*order.Order, error) {
	unlock := r.keys.Lock(id)
	defer unlock()

	o, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.byID[id] = cloneOrder(*o)
	r.mu.Unlock()
	return o, nil
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]basket.Item(nil), o.Items...)
	return o
}
