package cache

import (
	"context"
	"time"
)

// Store is a small key-value cache with expiration. The relay core uses it
// to keep hot meeting-token lookups off the database; entries are always
// re-derivable, so cache failures are never fatal.
type Store interface {
	// Get retrieves a value; the second return is false when absent or expired
	Get(ctx context.Context, key string) (string, bool)

	// Set stores a value with an expiration
	Set(ctx context.Context, key, value string, expiration time.Duration)

	// Delete removes a key
	Delete(ctx context.Context, key string)
}
