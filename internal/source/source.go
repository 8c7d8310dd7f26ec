// Package source defines the data-source contract the fetch
// coordinator consumes: an async query keyed on bounding box, filters
// and entity type.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dive-atlas/viewport/internal/core/model"
)

// Query is one viewport data request.
type Query struct {
	Entity  model.EntityType
	BBox    model.BBox
	Filters model.FilterSet
}

type Interface interface {
	Fetch(ctx context.Context, q Query) (model.Page, error)
}

// RateLimitedError signals the backend asked the client to slow down.
// RetryAfter is zero when the server gave no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// RetryHint extracts the rate-limit signal from an error chain.
func RetryHint(err error) (time.Duration, bool) {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}
