package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type mockMonthFetcher struct {
	mu      sync.Mutex
	fetched []string
	err     error
}

func (m *mockMonthFetcher) PrefetchMonth(ctx context.Context, month string) error {
	m.mu.Lock()
	m.fetched = append(m.fetched, month)
	m.mu.Unlock()
	return m.err
}

func TestCacheWarmer_Warm_Success(t *testing.T) {
	fetcher := &mockMonthFetcher{}
	warmer := NewCacheWarmer(fetcher, nil)

	if err := warmer.Warm(context.Background(), []string{"2024-01", "2024-02"}); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if len(fetcher.fetched) != 2 {
		t.Errorf("fetched %d months, want 2", len(fetcher.fetched))
	}
}

func TestCacheWarmer_Warm_EmptyMonths(t *testing.T) {
	warmer := NewCacheWarmer(&mockMonthFetcher{}, nil)
	ctx := context.Background()

	if err := warmer.Warm(ctx, nil); err != nil {
		t.Fatalf("Warm() with nil months error = %v, want nil", err)
	}
	if err := warmer.Warm(ctx, []string{}); err != nil {
		t.Fatalf("Warm() with empty months error = %v, want nil", err)
	}
}

func TestCacheWarmer_Warm_FetcherError(t *testing.T) {
	warmer := NewCacheWarmer(&mockMonthFetcher{err: errors.New("store down")}, nil)

	err := warmer.Warm(context.Background(), []string{"2024-02"})
	if err == nil {
		t.Fatal("Warm() error = nil, want non-nil")
	}
	if !strings.Contains(err.Error(), "warm 2024-02: store down") {
		t.Errorf("Warm() error = %q, want month and cause", err)
	}
}

// monthFetcherFunc adapts a function to MonthFetcher.
type monthFetcherFunc func(ctx context.Context, month string) error

func (f monthFetcherFunc) PrefetchMonth(ctx context.Context, month string) error {
	return f(ctx, month)
}

func TestCacheWarmer_Warm_KeepsEachCause(t *testing.T) {
	errInvalidMonth := errors.New("invalid month")
	errStore := errors.New("store down")
	fetcher := monthFetcherFunc(func(ctx context.Context, month string) error {
		switch month {
		case "2024-13":
			return errInvalidMonth
		case "2024-03":
			return errStore
		}
		return nil
	})

	err := NewCacheWarmer(fetcher, nil).Warm(context.Background(), []string{"2024-01", "2024-13", "2024-03"})
	if err == nil {
		t.Fatal("Warm() error = nil, want non-nil")
	}
	if !errors.Is(err, errInvalidMonth) {
		t.Errorf("errors.Is(err, invalid month) = false; err = %v", err)
	}
	if !errors.Is(err, errStore) {
		t.Errorf("errors.Is(err, store down) = false; err = %v", err)
	}
	if strings.Contains(err.Error(), "2024-01") {
		t.Errorf("Warm() error = %q, mentions a month that succeeded", err)
	}
}
