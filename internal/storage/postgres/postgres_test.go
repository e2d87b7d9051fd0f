//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/webshop/internal/domain/article"
	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/order"
	"github.com/xenking/webshop/internal/domain/user"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "webshop",
				"POSTGRES_PASSWORD": "webshop",
				"POSTGRES_DB":       "webshop",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://webshop:webshop@%s:%s/webshop?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return NewStore(pool)
}

func TestPostgresStore(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("users", func(t *testing.T) {
		u := &user.User{ID: "u1", Email: "alice@example.com", Name: "Alice", PasswordHash: "x", Role: user.RoleCustomer, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.Users.Create(ctx, u))
		require.ErrorIs(t, s.Users.Create(ctx, &user.User{ID: "u2", Email: "ALICE@example.com", Role: user.RoleCustomer, CreatedAt: now, UpdatedAt: now}), user.ErrEmailTaken)

		got, err := s.Users.GetByEmail(ctx, "Alice@Example.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.ID)

		_, err = s.Users.Update(ctx, "u1", func(u *user.User) error {
			u.Name = "Alice B."
			return nil
		})
		require.NoError(t, err)
		got, err = s.Users.GetByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Alice B.", got.Name)
		assert.False(t, got.Deleted())
	})

	t.Run("sessions", func(t *testing.T) {
		require.NoError(t, s.Sessions.Create(ctx, &auth.Session{TokenHash: "h1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
		got, err := s.Sessions.FindByHash(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)

		require.NoError(t, s.Sessions.Delete(ctx, "h1"))
		require.NoError(t, s.Sessions.Delete(ctx, "h1"))
		_, err = s.Sessions.FindByHash(ctx, "h1")
		require.ErrorIs(t, err, auth.ErrSessionNotFound)

		wall := time.Now().UTC()
		require.NoError(t, s.Sessions.Create(ctx, &auth.Session{TokenHash: "old", UserID: "u1", CreatedAt: wall.Add(-2 * time.Hour), ExpiresAt: wall.Add(-time.Hour)}))
		require.NoError(t, s.Sessions.Create(ctx, &auth.Session{TokenHash: "live", UserID: "u1", CreatedAt: wall, ExpiresAt: wall.Add(time.Hour)}))
		n, err := s.Sessions.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		_, err = s.Sessions.FindByHash(ctx, "live")
		require.NoError(t, err)
	})

	t.Run("articles", func(t *testing.T) {
		require.NoError(t, s.Articles.Upsert(ctx, &article.Article{ID: "a1", Name: "Lamp", Price: decimal.RequireFromString("10.50"), CreatedAt: now}))
		_, err := s.Articles.Update(ctx, "a1", func(a *article.Article) error {
			a.Rating.Count++
			a.Rating.Sum += 4
			return nil
		})
		require.NoError(t, err)

		// Re-seeding keeps ratings.
		require.NoError(t, s.Articles.Upsert(ctx, &article.Article{ID: "a1", Name: "Lamp v2", Price: decimal.RequireFromString("11.00"), CreatedAt: now}))
		a, err := s.Articles.GetByID(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "Lamp v2", a.Name)
		assert.True(t, decimal.RequireFromString("11.00").Equal(a.Price))
		assert.Equal(t, article.Rating{Count: 1, Sum: 4}, a.Rating)

		_, err = s.Articles.GetByID(ctx, "missing")
		var nf *article.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("basket update rolls back", func(t *testing.T) {
		id := basket.NewGuest()
		_, err := s.Baskets.Update(ctx, id, func(b *basket.Basket) error {
			return errors.New("boom")
		})
		require.Error(t, err)
		_, err = s.Baskets.Get(ctx, id)
		require.ErrorIs(t, err, basket.ErrNotFound, "failed update must not create the basket")
	})

	t.Run("concurrent basket updates", func(t *testing.T) {
		id := basket.ForUser("u1")
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Baskets.Update(ctx, id, func(b *basket.Basket) error {
					if len(b.Items) == 0 {
						b.Items = []basket.Item{{ArticleID: "a1", Name: "Lamp", PriceSnapshot: decimal.RequireFromString("10.50")}}
					}
					b.Items[0].Quantity++
					b.UpdatedAt = now
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		b, err := s.Baskets.Get(ctx, id)
		require.NoError(t, err)
		require.Len(t, b.Items, 1)
		assert.Equal(t, 20, b.Items[0].Quantity)
	})

	t.Run("checkout", func(t *testing.T) {
		id := basket.ForUser("u1")
		o, err := s.Orders.Checkout(ctx, id, func(b *basket.Basket) (*order.Order, error) {
			return &order.Order{
				ID:           "o1",
				OwnerID:      "u1",
				Items:        b.Items,
				DeliveryType: order.DeliveryStandard,
				PaymentType:  order.PaymentInvoice,
				State:        order.StateCreated,
				CreatedAt:    now,
				UpdatedAt:    now,
			}, nil
		})
		require.NoError(t, err)
		assert.Len(t, o.Items, 1)

		b, err := s.Baskets.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, b.Empty())

		got, err := s.Orders.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, 20, got.Items[0].Quantity)
		assert.True(t, decimal.RequireFromString("210.00").Equal(got.Total()))

		// A duplicate id fails the insert and leaves the basket intact.
		_, err = s.Baskets.Update(ctx, id, func(b *basket.Basket) error {
			b.Items = []basket.Item{{ArticleID: "a1", Quantity: 1, PriceSnapshot: decimal.NewFromInt(1)}}
			b.UpdatedAt = now
			return nil
		})
		require.NoError(t, err)
		_, err = s.Orders.Checkout(ctx, id, func(b *basket.Basket) (*order.Order, error) {
			return &order.Order{ID: "o1", OwnerID: "u1", Items: b.Items, State: order.StateCreated, CreatedAt: now, UpdatedAt: now}, nil
		})
		require.Error(t, err)
		b, err = s.Baskets.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, b.Items, 1)
	})

	t.Run("order update and list", func(t *testing.T) {
		addr := order.Address{Street: "Main St 1", Zip: "10115", City: "Berlin", Country: "DE"}
		_, err := s.Orders.Update(ctx, "o1", func(o *order.Order) error {
			o.DeliveryAddress = addr
			o.State = order.StateConfirmed
			return nil
		})
		require.NoError(t, err)

		got, err := s.Orders.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, addr, got.DeliveryAddress)
		assert.Equal(t, order.StateConfirmed, got.State)

		_, err = s.Orders.Update(ctx, "o1", func(o *order.Order) error {
			o.Deleted = true
			return nil
		})
		require.NoError(t, err)

		active, err := s.Orders.List(ctx, order.Filter{OwnerID: "u1"})
		require.NoError(t, err)
		assert.Empty(t, active)

		all, err := s.Orders.List(ctx, order.Filter{IncludeDeleted: true})
		require.NoError(t, err)
		assert.Len(t, all, 1)

		_, err = s.Orders.Get(ctx, "missing")
		require.ErrorIs(t, err, order.ErrNotFound)
	})
}
