package basket

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/webshop/internal/domain/fault"
)

const (
	userPrefix  = "user:"
	guestPrefix = "guest:"
)

var (
	// ErrNotFound is returned by Repository.Get for a basket that was never
	// created.
	ErrNotFound = fault.New(fault.NotFound, "basket not found")
	// ErrInvalidQuantity is returned for non-positive or oversized quantities.
	ErrInvalidQuantity = fault.New(fault.InvalidQuantity, "quantity must be a positive integer")
)

// ItemNotFoundError indicates that the basket holds no entry for an article.
type ItemNotFoundError struct {
	ArticleID string
}

func (e *ItemNotFoundError) Error() string {
	return "article " + e.ArticleID + " is not in the basket"
}

// FaultKind implements fault.Kinded.
func (e *ItemNotFoundError) FaultKind() fault.Kind { return fault.NotFound }

// ID identifies a basket. User baskets and guest baskets live in disjoint
// namespaces so a guest id can never address a user's basket.
type ID string

// ForUser returns the basket id owned by an authenticated user.
func ForUser(userID string) ID {
	return ID(userPrefix + userID)
}

// NewGuest issues a fresh guest basket id.
func NewGuest() ID {
	return ID(guestPrefix + uuid.New().String())
}

// ParseGuest parses a client supplied guest basket id, either the bare UUID
// or the prefixed form returned by the API.
func ParseGuest(s string) (ID, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), guestPrefix)
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", fault.Invalid("basket id %q is not a valid guest basket id", s)
	}
	return ID(guestPrefix + u.String()), nil
}

// IsGuest reports whether id is a guest basket id.
func (id ID) IsGuest() bool {
	return strings.HasPrefix(string(id), guestPrefix)
}

// Item is a basket line: an article reference, a positive quantity and the
// price captured when the article was first added.
type Item struct {
	ArticleID     string          `json:"articleId"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"priceSnapshot"`
}

// Subtotal returns Quantity × PriceSnapshot.
func (i Item) Subtotal() decimal.Decimal {
	return i.PriceSnapshot.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Basket is a mutable collection of items keyed by article id.
type Basket struct {
	ID        ID
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Empty reports whether the basket has no items.
func (b *Basket) Empty() bool {
	return len(b.Items) == 0
}

// Total returns the sum of all item subtotals.
func (b *Basket) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Clone returns a deep copy of b.
func (b *Basket) Clone() *Basket {
	c := *b
	c.Items = append([]Item(nil), b.Items...)
	return &c
}

// Clear removes every item.
func (b *Basket) Clear() {
	b.Items = nil
}

func (b *Basket) index(articleID string) int {
	for i, it := range b.Items {
		if it.ArticleID == articleID {
			return i
		}
	}
	return -1
}

// add merges qty into the entry of item.ArticleID, or appends item with qty.
func (b *Basket) add(item Item, qty int) error {
	if i := b.index(item.ArticleID); i >= 0 {
		sum := b.Items[i].Quantity + qty
		if sum > MaxQuantity {
			return ErrInvalidQuantity
		}
		b.Items[i].Quantity = sum
		return nil
	}
	item.Quantity = qty
	b.Items = append(b.Items, item)
	return nil
}

// remove deletes the entry for articleID if present.
func (b *Basket) remove(articleID string) {
	if i := b.index(articleID); i >= 0 {
		b.Items = append(b.Items[:i], b.Items[i+1:]...)
	}
}

// setQuantity sets the quantity of an existing entry; qty <= 0 removes it.
func (b *Basket) setQuantity(articleID string, qty int) error {
	i := b.index(articleID)
	if i < 0 {
		return &ItemNotFoundError{ArticleID: articleID}
	}
	if qty <= 0 {
		b.remove(articleID)
		return nil
	}
	b.Items[i].Quantity = qty
	return nil
}

// Repository defines persistence operations for baskets.
type Repository interface {
	// Get returns ErrNotFound for baskets that were never created.
	Get(ctx context.Context, id ID) (*Basket, error)
	// Create stores b unless a basket with the same id exists, and returns
	// the stored basket.
	Create(ctx context.Context, b *Basket) (*Basket, error)
	// Update applies fn to the basket under per-id exclusion and persists the
	// result. An absent basket is passed to fn as a new empty basket with a
	// zero CreatedAt. If fn returns an error nothing is written.
	Update(ctx context.Context, id ID, fn func(b *Basket) error) (*Basket, error)
}
