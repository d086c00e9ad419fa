package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/observability"
)

// RetryConfig bounds each store call. Timeout applies per attempt.
type RetryConfig struct {
	Timeout         time.Duration
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Retrying decorates a DocumentStore with per-attempt timeouts, exponential
// backoff retries and latency metrics. NotFound, invalid queries and caller
// cancellation are never retried.
type Retrying struct {
	next   DocumentStore
	cfg    RetryConfig
	logger *zap.Logger
}

// WithRetry wraps next. Zero config values fall back to 2s / 3 attempts / 50ms / 1s.
func WithRetry(next DocumentStore, cfg RetryConfig, logger *zap.Logger) *Retrying {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 50 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, cfg: cfg, logger: logger}
}

func (r *Retrying) Get(ctx context.Context, kind, key string) (Document, error) {
	return run(ctx, r, "get", func(ctx context.Context) (Document, error) {
		return r.next.Get(ctx, kind, key)
	})
}

func (r *Retrying) Put(ctx context.Context, kind, key string, fields map[string]any) error {
	_, err := run(ctx, r, "put", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.Put(ctx, kind, key, fields)
	})
	return err
}

func (r *Retrying) Fetch(ctx context.Context, q Query, limit, offset int) ([]Document, error) {
	return run(ctx, r, "fetch", func(ctx context.Context) ([]Document, error) {
		return r.next.Fetch(ctx, q, limit, offset)
	})
}

func (r *Retrying) Count(ctx context.Context, q Query) (int, error) {
	return run(ctx, r, "count", func(ctx context.Context) (int, error) {
		return r.next.Count(ctx, q)
	})
}

func (r *Retrying) DeleteMulti(ctx context.Context, kind string, keys []string) error {
	_, err := run(ctx, r, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.DeleteMulti(ctx, kind, keys)
	})
	return err
}

func (r *Retrying) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return r.next.Ping(ctx)
}

func (r *Retrying) Close() error {
	return r.next.Close()
}

func run[T any](ctx context.Context, r *Retrying, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval

	attempt := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
		v, err := fn(callCtx)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidQuery) || ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		observability.StoreRetriesTotal.WithLabelValues(op).Inc()
		r.logger.Warn("store call failed, retrying",
			zap.String("operation", op), zap.Duration("wait", wait), zap.Error(err))
	}

	v, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.cfg.MaxAttempts),
		backoff.WithNotify(notify),
	)
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	observability.StoreOperationDurationSeconds.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return v, err
}
