package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{nil, ""},
		{context.DeadlineExceeded, ErrorCategoryTimeout},
		{fmt.Errorf("wrap: %w", ErrRateLimited), ErrorCategoryRateLimited},
		{fmt.Errorf("%w: HTTP 503", ErrUpstreamFailure), ErrorCategoryUpstream5xx},
		{fmt.Errorf("%w: HTTP 401", ErrUnauthorized), ErrorCategoryUnauthorized},
		{fmt.Errorf("%w: HTTP 404", ErrBadRequest), ErrorCategoryBadRequest},
		{fmt.Errorf("%w: open", ErrCircuitOpen), ErrorCategoryCircuitOpen},
		{errors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{errors.New("parse response: unexpected EOF"), ErrorCategoryParsing},
		{errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		if got := CategorizeError(tt.err); got != tt.want {
			t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
