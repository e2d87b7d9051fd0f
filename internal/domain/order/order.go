package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/fault"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = fault.New(fault.NotFound, "order not found")

// Order is a placed order. Items is a snapshot of the basket at checkout and
// never changes afterwards.
type Order struct {
	ID              string
	OwnerID         string
	Items           []basket.Item
	DeliveryAddress Address
	ContactData     Contact
	DeliveryType    DeliveryType
	PaymentType     PaymentType
	State           State
	Deleted         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Total returns the sum of all item subtotals.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Filter narrows Repository.List.
type Filter struct {
	// OwnerID limits the result to one user's orders when non-empty.
	OwnerID string
	// IncludeDeleted also returns soft-deleted orders.
	IncludeDeleted bool
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Checkout locks the basket, passes a copy to build and, if build
	// returns an order, stores the order and clears the basket in one atomic
	// step. An absent basket is passed as an empty basket.
	Checkout(ctx context.Context, basketID basket.ID, build func(b *basket.Basket) (*Order, error)) (*Order, error)
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Order, error)
	// List returns orders ordered by creation time, newest first.
	List(ctx context.Context, f Filter) ([]Order, error)
	// Update applies fn under per-order exclusion and persists the result.
	// If fn returns an error nothing is written.
	Update(ctx context.Context, id string, fn func(o *Order) error) (*Order, error)
}
