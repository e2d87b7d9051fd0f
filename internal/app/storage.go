package app

import (
	"bytes"
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/webshop/db"
	"github.com/xenking/webshop/internal/domain/article"
	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/order"
	"github.com/xenking/webshop/internal/domain/user"
	"github.com/xenking/webshop/internal/seed"
	"github.com/xenking/webshop/internal/storage/memory"
	"github.com/xenking/webshop/internal/storage/postgres"
	"github.com/xenking/webshop/pkg/health"
)

// storage is the selected backend behind the domain repository interfaces.
type storage struct {
	users    user.Repository
	sessions interface {
		auth.SessionRepository
		auth.SessionSweeper
	}
	articles interface {
		article.Repository
		seed.ArticleWriter
	}
	baskets basket.Repository
	orders  order.Repository
	pinger  health.Pinger
	close   func()
}

func openStorage(ctx context.Context, lg *zap.Logger, cfg *Config) (*storage, error) {
	switch cfg.Storage {
	case StorageMemory:
		return openMemory(ctx, lg)
	case StoragePostgres:
		return openPostgres(ctx, cfg.DatabaseURL)
	}
	return nil, errors.Errorf("unknown storage %q", cfg.Storage)
}

// openMemory creates an in-process store preloaded with the embedded catalog.
func openMemory(ctx context.Context, lg *zap.Logger) (*storage, error) {
	store := memory.New()
	articles, err := seed.ParseArticles(bytes.NewReader(db.SeedArticles), time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "parse embedded catalog")
	}
	if err := seed.LoadArticles(ctx, store.Articles, articles); err != nil {
		return nil, errors.Wrap(err, "load embedded catalog")
	}
	lg.Warn("Using in-memory storage, state is lost on restart")
	return &storage{
		users:    store.Users,
		sessions: store.Sessions,
		articles: store.Articles,
		baskets:  store.Baskets,
		orders:   store.Orders,
		pinger:   store,
		close:    func() {},
	}, nil
}

func openPostgres(ctx context.Context, databaseURL string) (*storage, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	store := postgres.NewStore(pool)
	return &storage{
		users:    store.Users,
		sessions: store.Sessions,
		articles: store.Articles,
		baskets:  store.Baskets,
		orders:   store.Orders,
		pinger:   pool,
		close:    pool.Close,
	}, nil
}
