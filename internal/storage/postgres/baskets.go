package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/webshop/internal/domain/basket"
)

const (
	getBasketSQL = `SELECT id, items, created_at, updated_at FROM baskets WHERE id = $1`

	getBasketForUpdateSQL = getBasketSQL + ` FOR UPDATE`

	// ensureBasketSQL materializes a row to lock. It returns a row only if
	// the basket did not exist before.
	ensureBasketSQL = `INSERT INTO baskets (id, items, created_at, updated_at)
		VALUES ($1, '[]', $2, $2)
		ON CONFLICT (id) DO NOTHING
		RETURNING id`

	createBasketSQL = `INSERT INTO baskets (id, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	updateBasketSQL = `UPDATE baskets SET items = $2, created_at = $3, updated_at = $4 WHERE id = $1`
)

var _ basket.Repository = (*BasketRepository)(nil)

// BasketRepository implements basket.Repository backed by PostgreSQL. Items
// are stored as a JSONB array.
type BasketRepository struct {
	pool *pgxpool.Pool
}

// NewBasketRepository returns a BasketRepository that uses the given pool.
func NewBasketRepository(pool *pgxpool.Pool) *BasketRepository {
	return &BasketRepository{pool: pool}
}

func (r *BasketRepository) Get(ctx context.Context, id basket.ID) (*basket.Basket, error) {
	return getBasket(ctx, r.pool, getBasketSQL, id)
}

func (r *BasketRepository) Create(ctx context.Context, b *basket.Basket) (*basket.Basket, error) {
	items, err := marshalItems(b.Items)
	if err != nil {
		return nil, err
	}
	if _, err := r.pool.Exec(ctx, createBasketSQL, string(b.ID), items, b.CreatedAt, b.UpdatedAt); err != nil {
		return nil, errors.Wrapf(err, "create basket %q", b.ID)
	}
	return r.Get(ctx, b.ID)
}

func (r *BasketRepository) Update(ctx context.Context, id basket.ID, fn func(b *basket.Basket) error) (*basket.Basket, error) {
	var out *basket.Basket
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		b, err := lockBasket(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		if err := saveBasket(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockBasket row-locks basket id for the rest of tx, creating the row if
// needed. A basket created here is returned with a zero CreatedAt, like an
// absent basket; rolling back tx removes the row again.
func lockBasket(ctx context.Context, tx pgx.Tx, id basket.ID) (*basket.Basket, error) {
	var inserted string
	err := tx.QueryRow(ctx, ensureBasketSQL, string(id), time.Now().UTC()).Scan(&inserted)
	created := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(err, "ensure basket %q", id)
	}

	b, err := getBasket(ctx, tx, getBasketForUpdateSQL, id)
	if err != nil {
		return nil, err
	}
	if created {
		b.CreatedAt = time.Time{}
		b.UpdatedAt = time.Time{}
	}
	return b, nil
}

func saveBasket(ctx context.Context, tx pgx.Tx, b *basket.Basket) error {
	items, err := marshalItems(b.Items)
	if err != nil {
		return err
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = b.UpdatedAt
	}
	if _, err := tx.Exec(ctx, updateBasketSQL, string(b.ID), items, b.CreatedAt, b.UpdatedAt); err != nil {
		return errors.Wrapf(err, "update basket %q", b.ID)
	}
	return nil
}

func getBasket(ctx context.Context, q querier, sql string, id basket.ID) (*basket.Basket, error) {
	var (
		b     basket.Basket
		rawID string
		items []byte
	)
	err := q.QueryRow(ctx, sql, string(id)).Scan(&rawID, &items, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, basket.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get basket %q", id)
	}
	b.ID = basket.ID(rawID)
	if err := json.Unmarshal(items, &b.Items); err != nil {
		return nil, errors.Wrapf(err, "decode basket %q items", id)
	}
	if len(b.Items) == 0 {
		b.Items = nil
	}
	return &b, nil
}

func marshalItems(items []basket.Item) ([]byte, error) {
	if items == nil {
		items = []basket.Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, errors.Wrap(err, "encode items")
	}
	return raw, nil
}
