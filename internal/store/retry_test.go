package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first failures calls of Get with errTransient.
type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
	block    bool
}

var errTransient = errors.New("database is locked")

func (f *flakyStore) Get(ctx context.Context, kind, key string) (Document, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return Document{}, ctx.Err()
	}
	if f.calls <= f.failures {
		return Document{}, errTransient
	}
	return f.MemoryStore.Get(ctx, kind, key)
}

func fastRetry() RetryConfig {
	return RetryConfig{Timeout: 50 * time.Millisecond, MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetrying_RecoversFromTransientErrors(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	require.NoError(t, inner.Put(context.Background(), "Weather", "2024-02-01", map[string]any{"temperature": 1}))
	s := WithRetry(inner, fastRetry(), nil)

	doc, err := s.Get(context.Background(), "Weather", "2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, float64(1), doc.Fields["temperature"])
	assert.Equal(t, 3, inner.calls)
}

func TestRetrying_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 10}
	s := WithRetry(inner, fastRetry(), nil)

	_, err := s.Get(context.Background(), "Weather", "2024-02-01")
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, inner.calls)
}

// TestRetrying_NotFoundIsPermanent verifies that a miss is reported after a
// single attempt.
func TestRetrying_NotFoundIsPermanent(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore()}
	s := WithRetry(inner, fastRetry(), nil)

	_, err := s.Get(context.Background(), "Weather", "1999-01-01")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, inner.calls)
}

// TestRetrying_PerAttemptTimeout verifies that a hung call is bounded by the
// configured timeout on every attempt.
func TestRetrying_PerAttemptTimeout(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), block: true}
	cfg := fastRetry()
	cfg.Timeout = 10 * time.Millisecond
	s := WithRetry(inner, cfg, nil)

	start := time.Now()
	_, err := s.Get(context.Background(), "Weather", "2024-02-01")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, inner.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetrying_PassesThroughWrites(t *testing.T) {
	inner := NewMemoryStore()
	s := WithRetry(inner, RetryConfig{}, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "Film", "1", map[string]any{"title": "A New Hope"}))
	n, err := s.Count(ctx, NewQuery("Film"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	docs, err := s.Fetch(ctx, NewQuery("Film"), 1, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	require.NoError(t, s.DeleteMulti(ctx, "Film", []string{"1"}))
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
}
