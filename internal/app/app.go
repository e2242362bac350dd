// Package app wires the coupon service together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-coupons/internal/domain/auth"
	"github.com/xenking/kart-coupons/internal/domain/customer"
	"github.com/xenking/kart-coupons/internal/domain/redemption"
	"github.com/xenking/kart-coupons/internal/handler"
	"github.com/xenking/kart-coupons/internal/storage/postgres"
	"github.com/xenking/kart-coupons/pkg/health"
	"github.com/xenking/kart-coupons/pkg/httpmiddleware"
)

// Telemetry provides the OpenTelemetry providers. It is implemented by
// *app.Telemetry from github.com/go-faster/sdk/app.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Run creates all dependencies, serves HTTP until ctx is cancelled and then
// shuts down gracefully.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", cfg.Health.PingTimeout, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(cfg.Health.MaxGCPause))

	products := postgres.NewProductRepository(pool)
	customers := postgres.NewCustomerRepository(pool)
	coupons := postgres.NewCouponRepository(pool)
	history := postgres.NewHistoryRepository(pool)

	carts := customer.NewService(customers, products)
	redemptions, err := redemption.NewService(customers, customers, coupons, history, redemption.Options{
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create redemption service")
	}

	var authenticator handler.Authenticator
	if cfg.AuthDisabled {
		lg.Warn("API key authentication disabled")
	} else {
		authenticator = auth.NewAuthenticator(postgres.NewAPIKeyRepository(pool), []byte(cfg.APIKeyPepper))
	}

	mux := http.NewServeMux()
	healthSvc.Register(mux)
	handler.New(products, coupons, carts, redemptions, authenticator).Register(mux)

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("coupons-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			limiter.Middleware(),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gCtx, cfg.Health.Interval)
	})
	if cfg.RateLimit.Max > 0 && cfg.RateLimit.Window > 0 {
		g.Go(func() error {
			if err := limiter.Run(gCtx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
