package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/order"
)

const (
	orderColumns = `id, owner_id, items, delivery_address, contact_data, delivery_type, payment_type,
		state, deleted, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR owner_id = $1) AND ($2 OR NOT deleted)
		ORDER BY created_at DESC, id DESC`

	updateOrderSQL = `UPDATE orders
		SET delivery_address = $2, contact_data = $3, delivery_type = $4, payment_type = $5,
			state = $6, deleted = $7, updated_at = $8
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items,
// address and contact data are stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Checkout locks the basket row, inserts the built order and clears the
// basket in a single transaction.
func (r *OrderRepository) Checkout(ctx context.Context, basketID basket.ID, build func(b *basket.Basket) (*order.Order, error)) (*order.Order, error) {
	var out *order.Order
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		b, err := lockBasket(ctx, tx, basketID)
		if err != nil {
			return err
		}
		o, err := build(b.Clone())
		if err != nil {
			return err
		}
		if err := insertOrder(ctx, tx, o); err != nil {
			return err
		}
		b.Clear()
		b.UpdatedAt = o.CreatedAt
		if err := saveBasket(ctx, tx, b); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, r.pool, getOrderSQL, id)
}

func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, f.OwnerID, f.IncludeDeleted)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *OrderRepository) Update(ctx context.Context, id string, fn func(o *order.Order) error) (*order.Order, error) {
	var out *order.Order
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := getOrder(ctx, tx, getOrderForUpdateSQL, id)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		address, contact, err := marshalOrderFields(o)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateOrderSQL,
			o.ID, address, contact, string(o.DeliveryType), string(o.PaymentType),
			string(o.State), o.Deleted, o.UpdatedAt,
		); err != nil {
			return errors.Wrapf(err, "update order %q", id)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	items, err := marshalItems(o.Items)
	if err != nil {
		return err
	}
	address, contact, err := marshalOrderFields(o)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, createOrderSQL,
		o.ID, o.OwnerID, items, address, contact,
		string(o.DeliveryType), string(o.PaymentType), string(o.State), o.Deleted,
		o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	return nil
}

func marshalOrderFields(o *order.Order) (address, contact []byte, err error) {
	if address, err = json.Marshal(o.DeliveryAddress); err != nil {
		return nil, nil, errors.Wrap(err, "encode delivery address")
	}
	if contact, err = json.Marshal(o.ContactData); err != nil {
		return nil, nil, errors.Wrap(err, "encode contact data")
	}
	return address, contact, nil
}

func getOrder(ctx context.Context, q querier, sql, id string) (*order.Order, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                        order.Order
		items, address, contact  []byte
		delivery, payment, state string
	)
	if err := row.Scan(
		&o.ID, &o.OwnerID, &items, &address, &contact, &delivery, &payment,
		&state, &o.Deleted, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return o, err
	}
	o.DeliveryType = order.DeliveryType(delivery)
	o.PaymentType = order.PaymentType(payment)
	o.State = order.State(state)

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, errors.Wrap(err, "decode order items")
	}
	if err := json.Unmarshal(address, &o.DeliveryAddress); err != nil {
		return o, errors.Wrap(err, "decode delivery address")
	}
	if err := json.Unmarshal(contact, &o.ContactData); err != nil {
		return o, errors.Wrap(err, "decode contact data")
	}
	return o, nil
}
