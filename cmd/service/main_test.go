package main

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/cache"
	"github.com/kjstillabower/apiverse/internal/config"
)

// TestNewCache_InMemory verifies the default backend needs no memcached handle.
func TestNewCache_InMemory(t *testing.T) {
	c, mc, err := newCache(&config.Config{CacheBackend: "in_memory"})
	if err != nil {
		t.Fatalf("newCache: %v", err)
	}
	if mc != nil {
		t.Error("memcached handle set for in_memory backend")
	}
	if _, ok := c.(*cache.InMemoryCache); !ok {
		t.Errorf("cache = %T, want *cache.InMemoryCache", c)
	}
}

// TestNewTextClient verifies the backend is optional and built from config when set.
func TestNewTextClient(t *testing.T) {
	c, err := newTextClient(&config.Config{}, zap.NewNop())
	if err != nil || c != nil {
		t.Fatalf("no url: client = %v, err = %v; want nil, nil", c, err)
	}

	c, err = newTextClient(&config.Config{
		TextAPIURL:              "http://localhost:9999/api",
		TextAPITimeout:          time.Second,
		TextRetryAttempts:       2,
		BreakerFailureThreshold: 3,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("newTextClient: %v", err)
	}
	if c == nil {
		t.Fatal("client is nil")
	}
	if _, err := newTextClient(&config.Config{TextAPIURL: "not a url"}, zap.NewNop()); err == nil {
		t.Error("want error for url without scheme")
	}
}

// TestStoreRetryConfig verifies negative attempt counts clamp to zero so defaults apply.
func TestStoreRetryConfig(t *testing.T) {
	rc := storeRetryConfig(&config.Config{StoreTimeout: time.Second, StoreRetryAttempts: -1})
	if rc.MaxAttempts != 0 || rc.Timeout != time.Second {
		t.Errorf("retry config = %+v", rc)
	}
}
