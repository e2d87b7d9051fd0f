package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/webshop/internal/domain/article"
)

const (
	articleColumns = `id, name, description, price, rating_count, rating_sum, created_at`

	listArticlesSQL = `SELECT ` + articleColumns + ` FROM articles ORDER BY id`

	latestArticlesSQL = `SELECT ` + articleColumns + ` FROM articles
		ORDER BY created_at DESC, id DESC LIMIT $1`

	getArticleByIDSQL = `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`

	getArticleByIDForUpdateSQL = getArticleByIDSQL + ` FOR UPDATE`

	upsertArticleSQL = `INSERT INTO articles (id, name, description, price, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price`

	updateArticleSQL = `UPDATE articles
		SET name = $2, description = $3, price = $4, rating_count = $5, rating_sum = $6
		WHERE id = $1`
)

var _ article.Repository = (*ArticleRepository)(nil)

// ArticleRepository implements article.Repository backed by PostgreSQL.
type ArticleRepository struct {
	pool *pgxpool.Pool
}

// NewArticleRepository returns an ArticleRepository that uses the given pool.
func NewArticleRepository(pool *pgxpool.Pool) *ArticleRepository {
	return &ArticleRepository{pool: pool}
}

// Upsert inserts an article or refreshes its catalog fields. Ratings of an
// existing article are kept.
func (r *ArticleRepository) Upsert(ctx context.Context, a *article.Article) error {
	if _, err := r.pool.Exec(ctx, upsertArticleSQL, a.ID, a.Name, a.Description, a.Price, a.CreatedAt); err != nil {
		return errors.Wrapf(err, "upsert article %q", a.ID)
	}
	return nil
}

// List returns all articles ordered by id.
func (r *ArticleRepository) List(ctx context.Context) ([]article.Article, error) {
	rows, err := r.pool.Query(ctx, listArticlesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list articles")
	}
	return pgx.CollectRows(rows, scanArticle)
}

// Latest returns up to limit articles, newest first.
func (r *ArticleRepository) Latest(ctx context.Context, limit int) ([]article.Article, error) {
	rows, err := r.pool.Query(ctx, latestArticlesSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "latest articles")
	}
	return pgx.CollectRows(rows, scanArticle)
}

// GetByID returns a single article by its identifier.
func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*article.Article, error) {
	return getArticle(ctx, r.pool, getArticleByIDSQL, id)
}

// Update applies fn to an article inside a row-locking transaction.
func (r *ArticleRepository) Update(ctx context.Context, id string, fn func(a *article.Article) error) (*article.Article, error) {
	var out *article.Article
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		a, err := getArticle(ctx, tx, getArticleByIDForUpdateSQL, id)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateArticleSQL,
			a.ID, a.Name, a.Description, a.Price, a.Rating.Count, a.Rating.Sum,
		); err != nil {
			return errors.Wrapf(err, "update article %q", id)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getArticle(ctx context.Context, q querier, sql, id string) (*article.Article, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get article %q", id)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanArticle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &article.NotFoundError{ArticleID: id}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get article %q", id)
	}
	return &a, nil
}

func scanArticle(row pgx.CollectableRow) (article.Article, error) {
	var (
		a     article.Article
		price decimal.Decimal
	)
	err := row.Scan(&a.ID, &a.Name, &a.Description, &price, &a.Rating.Count, &a.Rating.Sum, &a.CreatedAt)
	a.Price = price
	return a, err
}
