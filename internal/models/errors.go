package models

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the acquisition pipeline. Transient provider failures
// are surfaced to the caller, never retried internally, so outages stay
// visible instead of being masked by silent backoff.
var (
	ErrFieldNotFound       = errors.New("field not found")
	ErrProviderUnavailable = errors.New("imagery provider unavailable")
	ErrAuthExpired         = errors.New("imagery provider credentials expired")
	ErrInsufficientBands   = errors.New("tile missing required band")
	ErrUnsupportedIndex    = errors.New("unsupported index type")
)

// RateLimitedError reports provider throttling together with the wait the
// provider asked for. Callers decide whether and when to retry.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("imagery provider rate limited, retry after %s", e.RetryAfter)
}
