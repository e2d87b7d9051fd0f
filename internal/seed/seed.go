// Package seed loads the article catalog and bootstraps the operator account.
package seed

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/webshop/internal/domain/article"
	"github.com/xenking/webshop/internal/domain/user"
)

// upsertWorkers bounds concurrent catalog writes.
const upsertWorkers = 4

type articleJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ParseArticles decodes a JSON array of articles and validates each entry.
// Missing creation times default to now.
func ParseArticles(r io.Reader, now time.Time) ([]article.Article, error) {
	var raw []articleJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode articles")
	}
	seen := make(map[string]bool, len(raw))
	out := make([]article.Article, 0, len(raw))
	for i, a := range raw {
		switch {
		case strings.TrimSpace(a.ID) == "":
			return nil, errors.Errorf("article #%d: id is required", i)
		case seen[a.ID]:
			return nil, errors.Errorf("article %s: duplicate id", a.ID)
		case strings.TrimSpace(a.Name) == "":
			return nil, errors.Errorf("article %s: name is required", a.ID)
		case !a.Price.IsPositive():
			return nil, errors.Errorf("article %s: price must be positive", a.ID)
		}
		seen[a.ID] = true
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		out = append(out, article.Article{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Price:       a.Price,
			CreatedAt:   a.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// OpenArticles opens a catalog file. Files ending in .gz are decompressed.
func OpenArticles(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}

// ArticleWriter stores catalog entries, keeping existing ratings.
type ArticleWriter interface {
	Upsert(ctx context.Context, a *article.Article) error
}

// LoadArticles upserts articles concurrently.
func LoadArticles(ctx context.Context, w ArticleWriter, articles []article.Article) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)
	for i := range articles {
		a := &articles[i]
		g.Go(func() error {
			if err := w.Upsert(ctx, a); err != nil {
				return errors.Wrapf(err, "upsert article %s", a.ID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	zctx.From(ctx).Info("Catalog loaded", zap.Int("articles", len(articles)))
	return nil
}

// Admin describes the operator account created on bootstrap.
type Admin struct {
	Email    string
	Password string
	Name     string
}

// EnsureAdmin creates the operator account unless a user with that email
// already exists. It reports whether an account was created. An existing
// account is left untouched, whatever its role.
func EnsureAdmin(ctx context.Context, users user.Repository, hasher user.Hasher, a Admin, now time.Time) (bool, error) {
	email, err := user.NormalizeEmail(a.Email)
	if err != nil {
		return false, errors.Wrap(err, "admin email")
	}
	if a.Password == "" {
		return false, errors.New("admin password is required")
	}
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, user.ErrNotFound) {
		return false, errors.Wrap(err, "find admin")
	}

	hash, err := hasher.Hash(a.Password)
	if err != nil {
		return false, errors.Wrap(err, "hash admin password")
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = "Operator"
	}
	u := &user.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	if err := users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return false, nil
		}
		return false, errors.Wrap(err, "create admin")
	}
	zctx.From(ctx).Info("Admin account created", zap.String("user_id", u.ID), zap.String("email", email))
	return true, nil
}
