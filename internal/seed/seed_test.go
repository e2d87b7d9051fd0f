package seed

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/webshop/db"
	"github.com/xenking/webshop/internal/domain/user"
	"github.com/xenking/webshop/internal/storage/memory"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type prefixHasher struct{}

func (prefixHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func TestParseArticles_Embedded(t *testing.T) {
	articles, err := ParseArticles(bytes.NewReader(db.SeedArticles), now)
	require.NoError(t, err)
	require.Len(t, articles, 8)
	assert.Equal(t, "desk-lamp", articles[0].ID)
	assert.Equal(t, "34.90", articles[0].Price.StringFixed(2))
	assert.Equal(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), articles[0].CreatedAt)
}

func TestParseArticles_Invalid(t *testing.T) {
	for name, input := range map[string]string{
		"not an array":   `{"id":"a"}`,
		"missing id":     `[{"name":"A","price":"1.00"}]`,
		"duplicate id":   `[{"id":"a","name":"A","price":"1.00"},{"id":"a","name":"B","price":"2.00"}]`,
		"missing name":   `[{"id":"a","price":"1.00"}]`,
		"zero price":     `[{"id":"a","name":"A","price":"0"}]`,
		"negative price": `[{"id":"a","name":"A","price":"-3"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseArticles(strings.NewReader(input), now)
			assert.Error(t, err)
		})
	}
}

func TestParseArticles_DefaultCreatedAt(t *testing.T) {
	articles, err := ParseArticles(strings.NewReader(`[{"id":"a","name":"A","price":2.5}]`), now)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, now, articles[0].CreatedAt)
}

func TestOpenArticles_Gzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "articles.json.gz")

	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write(db.SeedArticles)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	rc, err := OpenArticles(path)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, db.SeedArticles, data)

	_, err = OpenArticles(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadArticles(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	articles, err := ParseArticles(bytes.NewReader(db.SeedArticles), now)
	require.NoError(t, err)

	require.NoError(t, LoadArticles(ctx, store.Articles, articles))
	all, err := store.Articles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(articles))
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	admin := Admin{Email: " Ops@Shop.Example ", Password: "operator-secret"}

	created, err := EnsureAdmin(ctx, store.Users, prefixHasher{}, admin, now)
	require.NoError(t, err)
	assert.True(t, created)

	u, err := store.Users.GetByEmail(ctx, "ops@shop.example")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, u.Role)
	assert.Equal(t, "Operator", u.Name)
	assert.Equal(t, "hashed:operator-secret", u.PasswordHash)

	created, err = EnsureAdmin(ctx, store.Users, prefixHasher{}, admin, now)
	require.NoError(t, err)
	assert.False(t, created, "second bootstrap keeps the existing account")

	_, err = EnsureAdmin(ctx, store.Users, prefixHasher{}, Admin{Email: "ops@shop.example"}, now)
	assert.Error(t, err)
	_, err = EnsureAdmin(ctx, store.Users, prefixHasher{}, Admin{Email: "nope", Password: "x"}, now)
	assert.Error(t, err)
}
