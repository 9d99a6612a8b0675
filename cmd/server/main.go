package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/wbdash/internal/adapter/httpserver"
	"github.com/pscheid92/wbdash/internal/adapter/memory"
	"github.com/pscheid92/wbdash/internal/adapter/metrics"
	"github.com/pscheid92/wbdash/internal/adapter/redis"
	"github.com/pscheid92/wbdash/internal/adapter/worldbank"
	"github.com/pscheid92/wbdash/internal/app"
	"github.com/pscheid92/wbdash/internal/catalog"
	"github.com/pscheid92/wbdash/internal/dataset"
	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/pscheid92/wbdash/internal/platform/config"
	"github.com/pscheid92/wbdash/internal/platform/logging"
	"github.com/pscheid92/wbdash/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout       = 10 * time.Second
	redisConnectTimeout   = 10 * time.Second
	memoryEvictionPeriod  = time.Minute
	healthCheckRedisLabel = "redis"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config, reg prometheus.Registerer) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewMetricsHook(metrics.NewRedisMetrics(reg)))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// tableStore picks where session tables live: Redis when REDIS_URL is set,
// process memory otherwise. The returned cleanup releases the backing store.
func tableStore(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer, cacheMetrics *metrics.CacheMetrics) (domain.TableStore, []httpserver.HealthCheck, func()) {
	if cfg.UseRedis() {
		client := setupRedis(cfg, reg)
		checks := []httpserver.HealthCheck{{
			Name:  healthCheckRedisLabel,
			Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		}}
		slog.Info("Session tables stored in Redis")
		return redis.NewTableStore(client, cfg.SessionMaxAge), checks, func() { _ = client.Close() }
	}

	store := memory.NewTableStore(cfg.SessionMaxAge, clock, cacheMetrics)
	stopEviction := store.StartEvictionTimer(memoryEvictionPeriod)
	slog.Info("Session tables stored in memory")
	return store, nil, stopEviction
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	refreshMetrics := metrics.NewRefreshMetrics(reg)
	upstreamMetrics := metrics.NewUpstreamMetrics(reg)
	cacheMetrics := metrics.NewCacheMetrics(reg)

	indicators := domain.DefaultIndicators()

	wb := worldbank.NewClient(cfg.WorldBankBaseURL, cfg.FetchTimeout, worldbank.WithObserver(upstreamMetrics))
	countries := catalog.NewCountries(wb, cfg.CountryCacheTTL, clock, catalog.WithObserver(cacheMetrics))
	fetcher := dataset.NewFetcher(wb, countries, indicators, cfg.FetchTimeout, clock)

	store, healthChecks, closeStore := tableStore(cfg, clock, reg, cacheMetrics)
	defer closeStore()
	healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "worldbank", Check: wb.Ping})

	refresher := app.NewRefresher(fetcher, store, clock, cfg.RefreshInterval, cfg.SessionMaxAge, app.WithRefreshObserver(refreshMetrics))
	appSvc := app.NewService(refresher, store, indicators)

	srv, err := httpserver.NewServer(cfg, appSvc, healthChecks,
		httpserver.WithMetrics(metrics.Handler(reg), httpMetrics.Middleware()),
		httpserver.WithRefreshStatus(refresher),
	)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		refresher.Run(ctx)
		return nil
	})

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		closeStore()
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
