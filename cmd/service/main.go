package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/apiverse/internal/cache"
	"github.com/kjstillabower/apiverse/internal/cleanup"
	"github.com/kjstillabower/apiverse/internal/client"
	"github.com/kjstillabower/apiverse/internal/config"
	"github.com/kjstillabower/apiverse/internal/format"
	"github.com/kjstillabower/apiverse/internal/generator"
	httphandler "github.com/kjstillabower/apiverse/internal/http"
	"github.com/kjstillabower/apiverse/internal/importer"
	"github.com/kjstillabower/apiverse/internal/lifecycle"
	"github.com/kjstillabower/apiverse/internal/observability"
	"github.com/kjstillabower/apiverse/internal/service"
	"github.com/kjstillabower/apiverse/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	db, err := store.OpenSQLite(cfg.StorePath)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	st := store.WithRetry(db, storeRetryConfig(cfg), logger)
	logger.Info("store opened", zap.String("path", cfg.StorePath))

	cacheSvc, memcache, err := newCache(cfg)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend), zap.Duration("ttl", cfg.CacheTTL))

	src := generator.NewSource(cfg.GeneratorSeed)
	if cfg.GeneratorSeed == 0 {
		logger.Info("generator seeded from clock", zap.Int64("seed", src.Seed()))
	}
	formatter := format.New(cfg.DownloadDir)
	resolver := service.NewResolver(cacheSvc, service.ResolverOptions{
		TTL:             cfg.CacheTTL,
		Coalesce:        cfg.Coalesce,
		CoalesceTimeout: cfg.CoalesceTimeout,
	})

	textClient, err := newTextClient(cfg, logger)
	if err != nil {
		logger.Fatal("text client", zap.Error(err))
	}
	var textBackend service.TextClient
	if textClient != nil {
		textBackend = textClient
		logger.Info("text backend enabled", zap.String("url", cfg.TextAPIURL))
	}

	svc := httphandler.Services{
		Weather:   service.NewWeatherService(st, generator.NewWeatherGenerator(src), formatter, resolver),
		Gradebook: service.NewGradebookService(st, generator.NewGradeGenerator(src)),
		Entities:  service.NewEntityService(st, generator.NewBackfiller(src), formatter, resolver),
		Text:      service.NewTextService(generator.NewTextGenerator(src), textBackend, formatter),
		Images:    service.NewImageService(st, cfg.StaticDir, src),
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if n, err := svc.Images.SyncMappings(startupCtx); err != nil {
		logger.Warn("image mapping sync failed", zap.Error(err))
	} else {
		logger.Info("image mappings synced", zap.Int("mappings", n))
	}
	if cfg.ImportOnStart {
		res, err := importer.New(st, importer.FromDir(cfg.ReferenceDataDir), logger).Bootstrap(startupCtx)
		switch {
		case err != nil:
			logger.Error("reference import failed", zap.Error(err))
		case res == nil:
			logger.Info("reference data already present, import skipped")
		default:
			logger.Info("reference data imported", zap.Int("entities", res.Total()))
		}
	}
	if len(cfg.WarmMonths) > 0 {
		if err := cache.NewCacheWarmer(svc.Weather, logger).Warm(startupCtx, cfg.WarmMonths); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
	}
	startupCancel()

	var sweeper cleanup.Sweeper
	if mem, ok := cacheSvc.(*cache.InMemoryCache); ok {
		sweeper = mem
	}
	janitor := cleanup.New(cfg.DownloadDir, cfg.DownloadMaxAge, cfg.CleanupInterval, sweeper, logger)
	if err := janitor.Start(); err != nil {
		logger.Fatal("cleanup janitor", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		StartTime:        time.Now(),
		StorePing:        st.Ping,
	}
	if memcache != nil {
		healthConfig.CachePing = memcache.Ping
	}
	observability.RegisterTrafficGauges(cfg.DegradedWindow)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(svc, cfg.DownloadDir, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	janitor.Stop()
	if err := st.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	if memcache != nil {
		if err := memcache.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func storeRetryConfig(cfg *config.Config) store.RetryConfig {
	return store.RetryConfig{
		Timeout:         cfg.StoreTimeout,
		MaxAttempts:     uint(max(cfg.StoreRetryAttempts, 0)),
		InitialInterval: cfg.StoreRetryBaseDelay,
		MaxInterval:     cfg.StoreRetryMaxDelay,
	}
}

// newCache builds the configured backend. The memcached handle is returned
// separately for health pings and close.
func newCache(cfg *config.Config) (cache.Cache, *cache.MemcachedCache, error) {
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		return mc, mc, nil
	}
	return cache.NewInMemoryCache(), nil, nil
}

// newTextClient returns nil when no backend URL is configured.
func newTextClient(cfg *config.Config, logger *zap.Logger) (*client.TextAPIClient, error) {
	if cfg.TextAPIURL == "" {
		return nil, nil
	}
	return client.NewTextAPIClient(client.Config{
		URL:              cfg.TextAPIURL,
		APIKey:           cfg.TextAPIKey,
		Timeout:          cfg.TextAPITimeout,
		RetryAttempts:    uint(max(cfg.TextRetryAttempts, 0)),
		RetryBaseDelay:   cfg.TextRetryBaseDelay,
		RetryMaxDelay:    cfg.TextRetryMaxDelay,
		FailureThreshold: uint32(max(cfg.BreakerFailureThreshold, 0)),
		OpenTimeout:      cfg.BreakerOpenTimeout,
	}, logger)
}
