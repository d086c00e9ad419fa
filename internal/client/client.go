// Package client calls an optional external text-generation backend.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/observability"
)

var (
	ErrUnauthorized    = errors.New("text backend rejected credentials")
	ErrBadRequest      = errors.New("text backend rejected request")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 1 << 20

// Config configures a TextAPIClient. Zero values take defaults.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration

	RetryAttempts  uint
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Breaker opens after FailureThreshold consecutive failures and probes
	// again after OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 2 * time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenRequests == 0 {
		c.HalfOpenRequests = 1
	}
}

// TextAPIClient fetches paragraphs with per-attempt timeouts, exponential
// retries and a circuit breaker shared across calls.
type TextAPIClient struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type paragraphsResponse struct {
	Paragraphs []string `json:"paragraphs"`
}

// NewTextAPIClient validates cfg and builds a client.
func NewTextAPIClient(cfg Config, logger *zap.Logger) (*TextAPIClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("text backend URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid text backend URL %q", cfg.URL)
	}
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &TextAPIClient{
		cfg:     cfg,
		baseURL: u,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "text_api",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Caller mistakes say nothing about backend health.
			return err == nil || errors.Is(err, ErrBadRequest) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CircuitBreakerTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
			logger.Warn("circuit breaker state change",
				zap.String("component", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return c, nil
}

// State returns the breaker state ("closed", "half-open", "open").
func (c *TextAPIClient) State() string {
	return c.breaker.State().String()
}

// Paragraphs requests count paragraphs of theme and length.
func (c *TextAPIClient) Paragraphs(ctx context.Context, theme, length string, count int) ([]string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryBaseDelay
	b.MaxInterval = c.cfg.RetryMaxDelay

	op := func() ([]string, error) {
		out, err := c.breaker.Execute(func() (any, error) {
			return c.call(ctx, theme, length, count)
		})
		switch {
		case err == nil:
			return out.([]string), nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrCircuitOpen, err))
		case !retryable(ctx, err):
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	notify := func(err error, wait time.Duration) {
		observability.TextAPIRetriesTotal.Inc()
		observability.LoggerFrom(ctx).Debug("text backend call failed, retrying",
			zap.Duration("wait", wait), zap.Error(err))
	}
	paras, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.cfg.RetryAttempts),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, fmt.Errorf("text backend: %w", err)
	}
	return paras, nil
}

func (c *TextAPIClient) call(ctx context.Context, theme, length string, count int) ([]string, error) {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, theme, length, count)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		observe("error", start)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	observe(statusLabel(resp.StatusCode), start)

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var parsed paragraphsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Paragraphs) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUpstreamFailure)
	}
	return parsed.Paragraphs, nil
}

func (c *TextAPIClient) buildRequest(ctx context.Context, theme, length string, count int) (*http.Request, error) {
	u := *c.baseURL
	q := u.Query()
	q.Set("type", theme)
	q.Set("length", length)
	q.Set("paras", strconv.Itoa(count))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}
	if id := observability.CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	return req, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrUnauthorized, code)
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
	return fmt.Errorf("%w: HTTP %d", ErrBadRequest, code)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch CategorizeError(err) {
	case ErrorCategoryTimeout, ErrorCategoryNetwork, ErrorCategoryRateLimited, ErrorCategoryUpstream5xx:
		return true
	}
	return false
}

func observe(status string, start time.Time) {
	observability.TextAPICallsTotal.WithLabelValues(status).Inc()
	observability.TextAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	case code >= 400 && code < 500:
		return "client_error"
	case code >= 500:
		return "server_error"
	}
	return "error"
}
