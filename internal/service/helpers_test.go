package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/apiverse/internal/cache"
	"github.com/kjstillabower/apiverse/internal/format"
	"github.com/kjstillabower/apiverse/internal/generator"
	"github.com/kjstillabower/apiverse/internal/store"
)

// failingCache fails every operation.
type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errors.New("cache timeout")
}

func (failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("cache timeout")
}

func (failingCache) Delete(ctx context.Context, key string) error {
	return errors.New("cache timeout")
}

// countingStore records calls per operation.
type countingStore struct {
	store.DocumentStore
	mu    sync.Mutex
	calls map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{DocumentStore: store.NewMemoryStore(), calls: map[string]int{}}
}

func (c *countingStore) count(op string) {
	c.mu.Lock()
	c.calls[op]++
	c.mu.Unlock()
}

func (c *countingStore) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *countingStore) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *countingStore) Get(ctx context.Context, kind, key string) (store.Document, error) {
	c.count("get")
	return c.DocumentStore.Get(ctx, kind, key)
}

func (c *countingStore) Put(ctx context.Context, kind, key string, fields map[string]any) error {
	c.count("put")
	return c.DocumentStore.Put(ctx, kind, key, fields)
}

func (c *countingStore) Fetch(ctx context.Context, q store.Query, limit, offset int) ([]store.Document, error) {
	c.count("fetch")
	return c.DocumentStore.Fetch(ctx, q, limit, offset)
}

func (c *countingStore) Count(ctx context.Context, q store.Query) (int, error) {
	c.count("count")
	return c.DocumentStore.Count(ctx, q)
}

func (c *countingStore) DeleteMulti(ctx context.Context, kind string, keys []string) error {
	c.count("delete")
	return c.DocumentStore.DeleteMulti(ctx, kind, keys)
}

func newWeatherService(t *testing.T, st store.DocumentStore, c cache.Cache) *WeatherService {
	t.Helper()
	return NewWeatherService(st, generator.NewWeatherGenerator(generator.NewSource(1)),
		format.New(t.TempDir()), NewResolver(c, ResolverOptions{Coalesce: true}))
}
