package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/apiverse/internal/observability"
)

func fastConfig(url string) Config {
	return Config{
		URL:              url,
		Timeout:          time.Second,
		RetryAttempts:    3,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		FailureThreshold: 3,
		OpenTimeout:      time.Minute,
	}
}

func TestNewTextAPIClient_InvalidURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "empty", url: "", wantErr: true},
		{name: "no scheme", url: "text.example.com/api", wantErr: true},
		{name: "valid", url: "https://text.example.com/api", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewTextAPIClient(Config{URL: tt.url}, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTextAPIClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && c.State() != "closed" {
				t.Errorf("initial state = %s, want closed", c.State())
			}
		})
	}
}

// TestParagraphs_Success verifies query parameters, headers and decoding.
func TestParagraphs_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "tech" || q.Get("length") != "short" || q.Get("paras") != "2" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("X-API-Key = %q", r.Header.Get("X-API-Key"))
		}
		if r.Header.Get("X-Correlation-ID") != "req-1" {
			t.Errorf("X-Correlation-ID = %q", r.Header.Get("X-Correlation-ID"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paragraphs":["One.","Two."]}`))
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL)
	cfg.APIKey = "secret"
	c, err := NewTextAPIClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := observability.WithCorrelationID(context.Background(), "req-1")
	paras, err := c.Paragraphs(ctx, "tech", "short", 2)
	if err != nil {
		t.Fatalf("Paragraphs() error = %v", err)
	}
	if len(paras) != 2 || paras[0] != "One." {
		t.Errorf("Paragraphs() = %q", paras)
	}
}

// TestParagraphs_RetriesTransientFailures verifies 5xx and 429 are retried.
func TestParagraphs_RetriesTransientFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusServiceUnavailable},
		{"rate limited", http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(tt.status)
					return
				}
				w.Write([]byte(`{"paragraphs":["Recovered."]}`))
			}))
			defer srv.Close()

			c, _ := NewTextAPIClient(fastConfig(srv.URL), nil)
			paras, err := c.Paragraphs(context.Background(), "lorem", "short", 1)
			if err != nil {
				t.Fatalf("Paragraphs() error = %v", err)
			}
			if paras[0] != "Recovered." {
				t.Errorf("Paragraphs() = %q", paras)
			}
			if got := calls.Load(); got != 3 {
				t.Errorf("calls = %d, want 3", got)
			}
		})
	}
}

// TestParagraphs_NonRetryable verifies client errors fail after one call.
func TestParagraphs_NonRetryable(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantCat ErrorCategory
	}{
		{"unauthorized", http.StatusUnauthorized, "", ErrUnauthorized, ErrorCategoryUnauthorized},
		{"bad request", http.StatusBadRequest, "", ErrBadRequest, ErrorCategoryBadRequest},
		{"malformed body", http.StatusOK, "{", nil, ErrorCategoryParsing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewTextAPIClient(fastConfig(srv.URL), nil)
			_, err := c.Paragraphs(context.Background(), "lorem", "short", 1)
			if err == nil {
				t.Fatal("Paragraphs() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if got := CategorizeError(err); got != tt.wantCat {
				t.Errorf("category = %s, want %s", got, tt.wantCat)
			}
			if got := calls.Load(); got != 1 {
				t.Errorf("calls = %d, want 1", got)
			}
		})
	}
}

// TestParagraphs_BreakerOpens verifies that repeated failures open the
// breaker and later calls fail without reaching the backend.
func TestParagraphs_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewTextAPIClient(fastConfig(srv.URL), nil)
	_, err := c.Paragraphs(context.Background(), "lorem", "short", 1)
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("first error = %v, want ErrUpstreamFailure", err)
	}
	if c.State() != "open" {
		t.Fatalf("state = %s, want open", c.State())
	}

	before := calls.Load()
	_, err = c.Paragraphs(context.Background(), "lorem", "short", 1)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if CategorizeError(err) != ErrorCategoryCircuitOpen {
		t.Errorf("category = %s", CategorizeError(err))
	}
	if calls.Load() != before {
		t.Errorf("backend called while open")
	}
}

// TestParagraphs_Timeout verifies a slow backend is reported as a timeout.
func TestParagraphs_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := fastConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	cfg.RetryAttempts = 1
	c, _ := NewTextAPIClient(cfg, nil)
	_, err := c.Paragraphs(context.Background(), "lorem", "short", 1)
	if CategorizeError(err) != ErrorCategoryTimeout {
		t.Errorf("error = %v, category %s, want timeout", err, CategorizeError(err))
	}
}

// TestParagraphs_CanceledContext verifies caller cancellation is not retried.
func TestParagraphs_CanceledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c, _ := NewTextAPIClient(fastConfig(srv.URL), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Paragraphs(ctx, "lorem", "short", 1); err == nil {
		t.Fatal("Paragraphs() expected error")
	}
	if calls.Load() > 1 {
		t.Errorf("calls = %d, want at most 1", calls.Load())
	}
}
