package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/webshop/db"
	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/seed"
	"github.com/xenking/webshop/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		articlesFile  string
		adminEmail    string
		adminPassword string
		adminName     string
		bcryptCost    int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&articlesFile, "articles-file", "", "path to an articles JSON file, .gz allowed (embedded catalog if empty)")
	flag.StringVar(&adminEmail, "admin-email", "", "operator account email (or WEBSHOP_ADMIN_EMAIL env)")
	flag.StringVar(&adminPassword, "admin-password", "", "operator account password (or WEBSHOP_ADMIN_PASSWORD env)")
	flag.StringVar(&adminName, "admin-name", "Operator", "operator display name")
	flag.IntVar(&bcryptCost, "bcrypt-cost", 10, "bcrypt cost for the operator password")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminEmail == "" {
		adminEmail = os.Getenv("WEBSHOP_ADMIN_EMAIL")
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("WEBSHOP_ADMIN_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	admin := seed.Admin{Email: adminEmail, Password: adminPassword, Name: adminName}
	if err := run(ctx, databaseURL, articlesFile, admin, bcryptCost); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, articlesFile string, admin seed.Admin, bcryptCost int) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store := postgres.NewStore(pool)

	if err := seedArticles(ctx, store.Articles, articlesFile); err != nil {
		return errors.Wrap(err, "seed articles")
	}

	if admin.Email == "" {
		slog.Info("no admin email given, skipping operator account")
		return nil
	}
	created, err := seed.EnsureAdmin(ctx, store.Users, auth.BcryptHasher{Cost: bcryptCost}, admin, time.Now())
	if err != nil {
		return errors.Wrap(err, "seed admin")
	}
	slog.Info("operator account", slog.String("email", admin.Email), slog.Bool("created", created))

	return nil
}

func seedArticles(ctx context.Context, w seed.ArticleWriter, path string) error {
	var r io.Reader = bytes.NewReader(db.SeedArticles)
	if path != "" {
		slog.Info("reading articles file", slog.String("path", path))
		f, err := seed.OpenArticles(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	articles, err := seed.ParseArticles(r, time.Now())
	if err != nil {
		return errors.Wrap(err, "parse articles")
	}

	slog.Info("upserting articles", slog.Int("count", len(articles)))

	return seed.LoadArticles(ctx, w, articles)
}
