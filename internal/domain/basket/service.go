package basket

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/webshop/internal/domain/article"
)

// MaxQuantity bounds the quantity of a single basket line.
const MaxQuantity = 9999

// Service implements the shopping basket operations. Every mutation runs
// inside Repository.Update, so operations on one basket serialize while
// different baskets proceed in parallel.
type Service struct {
	baskets  Repository
	articles article.Repository
	now      func() time.Time
}

// NewService creates a basket Service.
func NewService(baskets Repository, articles article.Repository) *Service {
	return &Service{
		baskets:  baskets,
		articles: articles,
		now:      time.Now,
	}
}

// Get returns the basket, or an empty one if it was never created. Reading
// does not create the basket.
func (s *Service) Get(ctx context.Context, id ID) (*Basket, error) {
	b, err := s.baskets.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return &Basket{ID: id}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get basket")
	}
	return b, nil
}

// Create explicitly creates a basket. Creating an existing basket returns it
// unchanged.
func (s *Service) Create(ctx context.Context, id ID) (*Basket, error) {
	now := s.now().UTC()
	b, err := s.baskets.Create(ctx, &Basket{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create basket")
	}
	return b, nil
}

// AddItem adds qty units of an article. Adding an article already in the
// basket sums the quantities and keeps the original price snapshot.
func (s *Service) AddItem(ctx context.Context, id ID, articleID string, qty int) (*Basket, error) {
	if qty <= 0 || qty > MaxQuantity {
		return nil, ErrInvalidQuantity
	}

	// Resolve the snapshot before entering the basket's critical section.
	a, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, errors.Wrapf(err, "get article %s", articleID)
	}
	item := Item{
		ArticleID:     a.ID,
		Name:          a.Name,
		PriceSnapshot: a.Price,
	}

	return s.update(ctx, id, func(b *Basket) error {
		return b.add(item, qty)
	})
}

// RemoveItem removes an article regardless of quantity. Removing an absent
// article succeeds without changes.
func (s *Service) RemoveItem(ctx context.Context, id ID, articleID string) (*Basket, error) {
	return s.update(ctx, id, func(b *Basket) error {
		b.remove(articleID)
		return nil
	})
}

// ChangeItemAmount sets the quantity of an article already in the basket.
// A quantity <= 0 removes the entry.
func (s *Service) ChangeItemAmount(ctx context.Context, id ID, articleID string, qty int) (*Basket, error) {
	if qty > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	return s.update(ctx, id, func(b *Basket) error {
		return b.setQuantity(articleID, qty)
	})
}

func (s *Service) update(ctx context.Context, id ID, fn func(b *Basket) error) (*Basket, error) {
	now := s.now().UTC()
	b, err := s.baskets.Update(ctx, id, func(b *Basket) error {
		if err := fn(b); err != nil {
			return err
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update basket")
	}
	return b, nil
}
