package service

import (
	"errors"
	"fmt"

	"github.com/kjstillabower/apiverse/internal/validation"
)

// Error taxonomy. ValidationError is never swallowed; cache and backfill
// anomalies always are.
var (
	ErrValidation = validation.ErrInvalid
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrUpstream   = errors.New("upstream unavailable")
)

// ValidationError reports a rejected input and the value received.
type ValidationError = validation.Error

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
