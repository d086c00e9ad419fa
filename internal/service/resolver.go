package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/apiverse/internal/cache"
	"github.com/kjstillabower/apiverse/internal/observability"
)

// Resolver is the cache-aside engine shared by the services. A miss runs the
// caller's load function (store lookup, then generation) and writes the
// result back to the cache. With coalescing enabled, concurrent misses for
// one key share a single load; without it, duplicate loads race benignly.
type Resolver struct {
	cache    cache.Cache
	ttl      time.Duration
	group    *singleflight.Group
	wait     time.Duration
	stampede *stampedeTracker
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	TTL time.Duration
	// Coalesce enables single-flight loading per key.
	Coalesce bool
	// CoalesceTimeout bounds how long a caller waits on another caller's load.
	CoalesceTimeout time.Duration
}

// NewResolver creates a Resolver over c.
func NewResolver(c cache.Cache, opts ResolverOptions) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	r := &Resolver{
		cache:    c,
		ttl:      opts.TTL,
		wait:     opts.CoalesceTimeout,
		stampede: newStampedeTracker(),
	}
	if opts.Coalesce {
		r.group = &singleflight.Group{}
	}
	return r
}

// Invalidate drops keys from the cache. Failures are logged and ignored.
func (r *Resolver) Invalidate(ctx context.Context, keys ...string) {
	logger := observability.LoggerFrom(ctx)
	for _, k := range keys {
		if err := r.cache.Delete(ctx, k); err != nil {
			logger.Warn("cache delete failed", zap.String("key", k), zap.Error(err))
		}
	}
}

// resolve returns the cached value for key or loads, caches and returns it.
// Cache errors are treated as misses.
func resolve[T any](ctx context.Context, r *Resolver, resource, key string, load func(context.Context) (T, error)) (T, error) {
	logger := observability.LoggerFrom(ctx)
	start := time.Now()

	cached, ok, err := cache.GetJSON[T](ctx, r.cache, key)
	if err != nil {
		logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
	}
	observability.RecordCacheLookup(resource, ok)
	if ok {
		logger.Debug("cache hit", zap.String("key", key))
		return cached, nil
	}

	concurrent := r.stampede.RecordMiss(key)
	defer r.stampede.Done(key)
	if concurrent > 1 {
		observability.StampedeConcurrency.WithLabelValues(resource).Observe(float64(concurrent))
	}
	logger.Debug("cache miss", zap.String("key", key))

	fill := func(ctx context.Context) (T, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		if err := cache.SetJSON(ctx, r.cache, key, v, r.ttl); err != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
		return v, nil
	}

	var out T
	if r.group == nil {
		out, err = fill(ctx)
	} else {
		out, err = coalesce(ctx, r, resource, key, fill)
	}
	if err != nil {
		return out, err
	}
	logger.Debug("resolved", zap.String("key", key), zap.Duration("duration", time.Since(start)))
	return out, nil
}

func coalesce[T any](ctx context.Context, r *Resolver, resource, key string, fill func(context.Context) (T, error)) (T, error) {
	var zero T
	// The shared load outlives any single caller's cancellation; store calls
	// carry their own timeouts.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return fill(shared)
	})

	var timeout <-chan time.Time
	if r.wait > 0 {
		t := time.NewTimer(r.wait)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case res := <-ch:
		if res.Shared {
			observability.CoalescedResolutionsTotal.WithLabelValues(resource).Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timeout:
		return zero, fmt.Errorf("resolve %s: timed out waiting for in-flight load", key)
	}
}
