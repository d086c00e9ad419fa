package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/observability"
)

// MonthFetcher is implemented by the weather service to resolve and cache a month.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type MonthFetcher interface {
	PrefetchMonth(ctx context.Context, month string) error
}

// CacheWarmer warms the cache by resolving a list of months ahead of traffic.
type CacheWarmer struct {
	fetcher MonthFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given fetcher and logger.
func NewCacheWarmer(fetcher MonthFetcher, logger *zap.Logger) *CacheWarmer {
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm resolves each month concurrently through the fetcher.
// Failed months are joined into the returned error.
func (w *CacheWarmer) Warm(ctx context.Context, months []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("months", len(months)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(months))
	for _, m := range months {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.fetcher.PrefetchMonth(ctx, m); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", m, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("months", len(months)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}
