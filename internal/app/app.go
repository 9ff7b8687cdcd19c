// Package app wires configuration, infrastructure, and every domain
// handler into a single running HTTP server (§5, §6, §9).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/gearloop/assetloan/internal/audit"
	"github.com/gearloop/assetloan/internal/auth"
	"github.com/gearloop/assetloan/internal/cache"
	"github.com/gearloop/assetloan/internal/config"
	"github.com/gearloop/assetloan/internal/httpserver"
	"github.com/gearloop/assetloan/internal/platform"
	"github.com/gearloop/assetloan/internal/store"
	"github.com/gearloop/assetloan/internal/telemetry"
	"github.com/gearloop/assetloan/pkg/employee"
	"github.com/gearloop/assetloan/pkg/inventory"
	"github.com/gearloop/assetloan/pkg/loan"
	"github.com/gearloop/assetloan/pkg/user"
)

// Run reads config, connects to infrastructure, runs migrations, and serves
// the API until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting assetloan", "listen", cfg.ListenAddr())

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewCacheClient(ctx, cfg.CacheURL)
	if err != nil {
		return fmt.Errorf("connecting to cache: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing cache", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry()

	return runAPI(ctx, cfg, logger, pool, rdb, metricsReg)
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	rootStore := store.New(pool)
	kv := cache.New(rdb, logger)

	accessSecret, refreshSecret := cfg.AccessTokenSecret, cfg.RefreshTokenSecret
	if cfg.IsDevelopment() {
		if accessSecret == "" {
			accessSecret = auth.GenerateDevSecret()
			logger.Info("auth: using auto-generated dev access token secret (set ACCESS_TOKEN_SECRET in production)")
		}
		if refreshSecret == "" {
			refreshSecret = auth.GenerateDevSecret()
			logger.Info("auth: using auto-generated dev refresh token secret (set REFRESH_TOKEN_SECRET in production)")
		}
	}
	tokens, err := auth.NewTokenService(accessSecret, refreshSecret, kv)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	limiter := auth.NewRateLimiter(kv, cfg.RateLimitWindow)

	srv := httpserver.NewServer(cfg, logger, pool, rdb, metricsReg)

	authGate := auth.Middleware(tokens, logger)
	generalLimit := limiter.Middleware(auth.TierGeneral)
	mutateLimit := limiter.Middleware(auth.TierMutate)

	// mutate composes the role gate (MANAGER+) with the mutate-tier rate
	// limit; it runs inside a sub-router that has already applied authGate
	// and generalLimit, so it does not repeat either (§4.5, §4.6, §4.11).
	mutate := func(next http.Handler) http.Handler {
		return auth.RequireManagerUp(mutateLimit(next))
	}

	// --- Auth routes: public, except /logout which needs a valid token to
	// revoke (auth.Middleware is applied inside pkg/user's own Routes) ---
	userHandler := user.NewHandler(rootStore, tokens, limiter, logger)
	srv.Router.Mount("/auth", userHandler.Routes())

	// --- User accounts: self-or-ADMIN for profile/password, ADMIN-only for
	// role changes (§4.7 "user account" row); both mutations invalidate the
	// target's outstanding tokens (§4.4 T1) ---
	srv.APIRouter.Route("/users", func(r chi.Router) {
		r.Use(authGate, generalLimit)
		r.Mount("/", userHandler.UserRoutes(auth.RequireSelf("id"), auth.RequireAdmin))
	})

	// --- Employees: shared ownership by the managing MANAGER, ADMIN
	// always allowed (§4.7) ---
	employeeHandler := employee.NewHandler(rootStore, logger)
	srv.APIRouter.Route("/employees", func(r chi.Router) {
		r.Use(authGate, generalLimit)
		r.Mount("/", employeeHandler.Routes(mutate, auth.RequireOwner("id", employeeHandler.Resolver())))
	})

	// --- Inventory: shared catalog, role gate only, no ownership gate
	// (§6) ---
	inventoryHandler := inventory.NewHandler(rootStore, logger)
	srv.APIRouter.Route("/asset-models", func(r chi.Router) {
		r.Use(authGate, generalLimit)
		r.Mount("/", inventory.AssetModelRoutes(inventoryHandler, mutate))
	})
	srv.APIRouter.Route("/asset-items", func(r chi.Router) {
		r.Use(authGate, generalLimit)
		r.Mount("/", inventory.AssetItemRoutes(inventoryHandler, mutate))
	})
	srv.APIRouter.Route("/stock-items", func(r chi.Router) {
		r.Use(authGate, generalLimit)
		r.Mount("/", inventory.StockItemRoutes(inventoryHandler, mutate))
	})

	// --- Loans: creator-only, ADMIN always allowed (§4.9) ---
	loanHandler := loan.NewHandler(rootStore, logger)
	srv.APIRouter.Route("/loans", func(r chi.Router) {
		r.Use(authGate, generalLimit)
		r.Mount("/", loanHandler.Routes(mutate, auth.RequireOwner("id", loanHandler.Resolver())))
	})

	// --- Audit log: ADMIN only (§6) ---
	auditHandler := audit.NewHandler(pool, logger)
	srv.APIRouter.Route("/audit", func(r chi.Router) {
		r.Use(authGate, generalLimit, auth.RequireAdmin)
		r.Mount("/", auditHandler.Routes())
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
