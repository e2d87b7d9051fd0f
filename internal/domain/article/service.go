package article

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/webshop/internal/domain/fault"
)

const (
	// DefaultLatest is the number of articles returned by Latest when the
	// caller does not ask for a specific amount.
	DefaultLatest = 10
	maxLatest     = 100

	minStars = 1
	maxStars = 5
)

// Service exposes the read side of the catalog plus rating changes.
type Service struct {
	articles Repository
}

// NewService creates an article Service.
func NewService(articles Repository) *Service {
	return &Service{articles: articles}
}

// Get returns a single article.
func (s *Service) Get(ctx context.Context, id string) (*Article, error) {
	if id == "" {
		return nil, fault.Invalid("article id is required")
	}
	a, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get article %s", id)
	}
	return a, nil
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Article, error) {
	all, err := s.articles.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list articles")
	}
	return all, nil
}

// Latest returns the most recently added articles, newest first.
func (s *Service) Latest(ctx context.Context, limit int) ([]Article, error) {
	switch {
	case limit == 0:
		limit = DefaultLatest
	case limit < 0 || limit > maxLatest:
		return nil, fault.Invalid("limit must be between 1 and %d", maxLatest)
	}
	latest, err := s.articles.Latest(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "latest articles")
	}
	return latest, nil
}

// Rate adds a 1–5 star rating to an article.
func (s *Service) Rate(ctx context.Context, id string, stars int) (*Article, error) {
	if id == "" {
		return nil, fault.Invalid("article id is required")
	}
	if stars < minStars || stars > maxStars {
		return nil, fault.Invalid("rating must be between %d and %d", minStars, maxStars)
	}
	a, err := s.articles.Update(ctx, id, func(a *Article) error {
		a.Rating.Count++
		a.Rating.Sum += stars
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "rate article %s", id)
	}
	return a, nil
}
