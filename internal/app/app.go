package app

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/webshop/internal/domain/article"
	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/order"
	"github.com/xenking/webshop/internal/domain/user"
	"github.com/xenking/webshop/internal/handler"
	"github.com/xenking/webshop/internal/seed"
	"github.com/xenking/webshop/pkg/health"
	"github.com/xenking/webshop/pkg/httpmiddleware"
)

const instrumentationName = "github.com/xenking/webshop"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("prefix", cfg.PathPrefix),
	)
	ctx = zctx.Base(ctx, lg)

	st, err := openStorage(ctx, lg, cfg)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer st.close()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck(cfg.Storage, 5*time.Second, health.PingCheck(st.pinger))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	hasher := auth.BcryptHasher{Cost: cfg.BcryptCost}
	if cfg.Admin.Email != "" {
		if _, err := seed.EnsureAdmin(ctx, st.users, hasher, seed.Admin{
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
			Name:     cfg.Admin.Name,
		}, time.Now()); err != nil {
			return errors.Wrap(err, "bootstrap admin")
		}
	}

	pepper := []byte(cfg.SessionPepper)
	if len(pepper) == 0 {
		// Sessions of the memory backend die with the process anyway.
		pepper = make([]byte, 32)
		_, _ = rand.Read(pepper)
	}

	// Domain services.
	meter := m.MeterProvider().Meter(instrumentationName)
	tracer := m.TracerProvider().Tracer(instrumentationName)
	authService, err := auth.NewService(auth.Config{
		SessionTTL: cfg.SessionTTL,
		Pepper:     pepper,
	}, st.sessions, st.users, hasher, meter)
	if err != nil {
		return errors.Wrap(err, "create auth service")
	}
	orderService, err := order.NewService(st.orders, meter, tracer)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	h := handler.New(
		authService,
		user.NewService(st.users, hasher),
		article.NewService(st.articles),
		basket.NewService(st.baskets, st.articles),
		orderService,
	)

	api := otelhttp.NewHandler(h.Router(cfg.PathPrefix), "webshop-api",
		otelhttp.WithMeterProvider(m.MeterProvider()),
		otelhttp.WithTracerProvider(m.TracerProvider()),
	)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.BasketIDHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{handler.BasketIDHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweepSessions(gCtx, lg, st.sessions, cfg.SessionSweep)
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	return g.Wait()
}
