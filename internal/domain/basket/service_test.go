package basket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/webshop/internal/domain/article"
	"github.com/xenking/webshop/internal/domain/fault"
)

// --- Mock implementations ---

type mockArticleRepo struct {
	byID map[string]*article.Article
}

func (m *mockArticleRepo) List(context.Context) ([]article.Article, error) { return nil, nil }

func (m *mockArticleRepo) Latest(context.Context, int) ([]article.Article, error) { return nil, nil }

func (m *mockArticleRepo) GetByID(_ context.Context, id string) (*article.Article, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, &article.NotFoundError{ArticleID: id}
	}
	c := *a
	return &c, nil
}

func (m *mockArticleRepo) Update(context.Context, string, func(*article.Article) error) (*article.Article, error) {
	return nil, errors.New("not implemented")
}

type mockBasketRepo struct {
	mu     sync.Mutex
	byID   map[ID]*Basket
	writes int
}

func newBasketRepo() *mockBasketRepo {
	return &mockBasketRepo{byID: make(map[ID]*Basket)}
}

func (m *mockBasketRepo) Get(_ context.Context, id ID) (*Basket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (m *mockBasketRepo) Create(_ context.Context, b *Basket) (*Basket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byID[b.ID]; ok {
		return existing.Clone(), nil
	}
	m.byID[b.ID] = b.Clone()
	return b.Clone(), nil
}

func (m *mockBasketRepo) Update(_ context.Context, id ID, fn func(b *Basket) error) (*Basket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if ok {
		b = b.Clone()
	} else {
		b = &Basket{ID: id}
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	m.byID[id] = b.Clone()
	m.writes++
	return b, nil
}

// --- Helpers ---

func newArticleRepo(articles ...article.Article) *mockArticleRepo {
	byID := make(map[string]*article.Article, len(articles))
	for i := range articles {
		byID[articles[i].ID] = &articles[i]
	}
	return &mockArticleRepo{byID: byID}
}

func newTestService(t *testing.T) (*Service, *mockBasketRepo, *mockArticleRepo) {
	t.Helper()
	articles := newArticleRepo(
		article.Article{ID: "a1", Name: "Lamp", Price: decimal.RequireFromString("10.00")},
		article.Article{ID: "a2", Name: "Chair", Price: decimal.RequireFromString("45.50")},
	)
	baskets := newBasketRepo()
	svc := NewService(baskets, articles)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, baskets, articles
}

func quantities(b *Basket) map[string]int {
	out := make(map[string]int, len(b.Items))
	for _, it := range b.Items {
		out[it.ArticleID] = it.Quantity
	}
	return out
}

// --- Tests ---

func TestGet_NeverCreatedIsEmpty(t *testing.T) {
	svc, baskets, _ := newTestService(t)

	b, err := svc.Get(context.Background(), ForUser("u1"))
	require.NoError(t, err)
	assert.True(t, b.Empty())
	assert.Equal(t, ForUser("u1"), b.ID)
	assert.Empty(t, baskets.byID, "reading must not create the basket")
}

func TestCreate_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := NewGuest()

	first, err := svc.Create(ctx, id)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "a1", 1)
	require.NoError(t, err)

	second, err := svc.Create(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Len(t, second.Items, 1)
}

func TestAddItem_MergesQuantities(t *testing.T) {
	svc, _, articles := newTestService(t)
	ctx := context.Background()
	id := ForUser("u1")

	_, err := svc.AddItem(ctx, id, "a1", 2)
	require.NoError(t, err)

	// A later price change must not affect the stored snapshot.
	articles.byID["a1"].Price = decimal.RequireFromString("99.00")

	b, err := svc.AddItem(ctx, id, "a1", 3)
	require.NoError(t, err)
	require.Len(t, b.Items, 1)
	assert.Equal(t, 5, b.Items[0].Quantity)
	assert.Equal(t, "Lamp", b.Items[0].Name)
	assert.True(t, decimal.RequireFromString("10.00").Equal(b.Items[0].PriceSnapshot))
	assert.True(t, decimal.RequireFromString("50.00").Equal(b.Total()))
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	svc, baskets, _ := newTestService(t)

	for _, qty := range []int{0, -1, MaxQuantity + 1} {
		_, err := svc.AddItem(context.Background(), ForUser("u1"), "a1", qty)
		require.ErrorIs(t, err, ErrInvalidQuantity)
		assert.True(t, fault.Is(err, fault.InvalidQuantity))
	}
	assert.Zero(t, baskets.writes)
}

func TestAddItem_MergeOverflow(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := ForUser("u1")

	_, err := svc.AddItem(ctx, id, "a1", MaxQuantity)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, id, "a1", 1)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	b, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a1": MaxQuantity}, quantities(b))
}

func TestAddItem_UnknownArticle(t *testing.T) {
	svc, baskets, _ := newTestService(t)

	_, err := svc.AddItem(context.Background(), ForUser("u1"), "missing", 1)

	var nf *article.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ArticleID)
	assert.True(t, fault.Is(err, fault.NotFound))
	assert.Zero(t, baskets.writes)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := ForUser("u1")

	_, err := svc.AddItem(ctx, id, "a1", 1)
	require.NoError(t, err)

	b, err := svc.RemoveItem(ctx, id, "a1")
	require.NoError(t, err)
	assert.True(t, b.Empty())

	b, err = svc.RemoveItem(ctx, id, "a1")
	require.NoError(t, err)
	assert.True(t, b.Empty())
}

func TestChangeItemAmount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := ForUser("u1")

	_, err := svc.AddItem(ctx, id, "a1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "a2", 1)
	require.NoError(t, err)

	b, err := svc.ChangeItemAmount(ctx, id, "a1", 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a1": 7, "a2": 1}, quantities(b))

	b, err = svc.ChangeItemAmount(ctx, id, "a2", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a1": 7}, quantities(b))

	b, err = svc.ChangeItemAmount(ctx, id, "a1", -3)
	require.NoError(t, err)
	assert.True(t, b.Empty())
}

func TestChangeItemAmount_NotInBasket(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ChangeItemAmount(context.Background(), ForUser("u1"), "a1", 3)

	var nf *ItemNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "a1", nf.ArticleID)
	assert.True(t, fault.Is(err, fault.NotFound))
}

// Guest adds A twice and B once, then sets A to 0: only B remains.
func TestBasketWalkthrough(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := NewGuest()

	_, err := svc.AddItem(ctx, id, "a1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "a1", 1)
	require.NoError(t, err)
	b, err := svc.AddItem(ctx, id, "a2", 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a1": 2, "a2": 1}, quantities(b))

	b, err = svc.ChangeItemAmount(ctx, id, "a1", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a2": 1}, quantities(b))
}

func TestConcurrentAdds(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := ForUser("u1")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, id, "a1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	b, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a1": n}, quantities(b))
}

func TestParseGuest(t *testing.T) {
	id := NewGuest()
	assert.True(t, id.IsGuest())
	assert.False(t, ForUser("u1").IsGuest())

	parsed, err := ParseGuest(string(id))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	bare, err := ParseGuest(string(id)[len(guestPrefix):])
	require.NoError(t, err)
	assert.Equal(t, id, bare)

	for _, bad := range []string{"", "user:u1", "guest:nope"} {
		_, err := ParseGuest(bad)
		assert.True(t, fault.Is(err, fault.Validation), bad)
	}
}
