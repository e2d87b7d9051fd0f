package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/webshop/internal/domain/article"
)

var _ article.Repository = (*ArticleRepository)(nil)

// ArticleRepository implements article.Repository in memory.
type ArticleRepository struct {
	keys *keyLock
	mu   sync.RWMutex
	byID map[string]article.Article
}

// NewArticleRepository returns an empty ArticleRepository.
func NewArticleRepository() *ArticleRepository {
	return &ArticleRepository{
		keys: newKeyLock(),
		byID: make(map[string]article.Article),
	}
}

// Upsert inserts or replaces an article.
func (r *ArticleRepository) Upsert(_ context.Context, a *article.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = *a
	return nil
}

// List returns all articles ordered by id.
func (r *ArticleRepository) List(_ context.Context) ([]article.Article, error) {
	out := r.snapshot()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Latest returns up to limit articles, newest first.
func (r *ArticleRepository) Latest(_ context.Context, limit int) ([]article.Article, error) {
	out := r.snapshot()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByID returns a single article.
func (r *ArticleRepository) GetByID(_ context.Context, id string) (*article.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, &article.NotFoundError{ArticleID: id}
	}
	return &a, nil
}

// Update applies fn to an article under the article's lock.
func (r *ArticleRepository) Update(ctx context.Context, id string, fn func(a *article.Article) error) (*article.Article, error) {
	unlock := r.keys.Lock(id)
	defer unlock()

	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.byID[id] = *a
	r.mu.Unlock()
	return a, nil
}

func (r *ArticleRepository) snapshot() []article.Article {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]article.Article, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out
}
