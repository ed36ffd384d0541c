// Package cache provides short-lived key/value stores for eligibility results.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented cache. A miss is reported as ok=false with a nil
// error; an error means the store could not be reached.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
