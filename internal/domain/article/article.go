package article

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/webshop/internal/domain/fault"
)

// NotFoundError indicates a requested article does not exist.
type NotFoundError struct {
	ArticleID string
}

func (e *NotFoundError) Error() string {
	return "article " + e.ArticleID + " not found"
}

// FaultKind implements fault.Kinded.
func (e *NotFoundError) FaultKind() fault.Kind { return fault.NotFound }

// Article is a catalog entry available for purchase.
type Article struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Rating      Rating
	CreatedAt   time.Time
}

// Rating aggregates the star ratings an article received.
type Rating struct {
	Count int
	Sum   int
}

// Average returns the mean rating rounded to two places, zero when unrated.
func (r Rating) Average() decimal.Decimal {
	if r.Count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(r.Sum)).
		DivRound(decimal.NewFromInt(int64(r.Count)), 2)
}

// Repository defines persistence operations for the catalog. GetByID returns
// *NotFoundError for unknown ids.
type Repository interface {
	List(ctx context.Context) ([]Article, error)
	Latest(ctx context.Context, limit int) ([]Article, error)
	GetByID(ctx context.Context, id string) (*Article, error)
	Update(ctx context.Context, id string, fn func(a *Article) error) (*Article, error)
}
