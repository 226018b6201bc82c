package repositories

import "context"

// ObjectStorage defines the durable blob store contract. The MinIO client in
// internal/infrastructure/storage is the production implementation.
type ObjectStorage interface {
	// PutObject stores bytes under a key
	PutObject(ctx context.Context, key string, data []byte, contentType string) error

	// GetObject retrieves the full bytes stored under a key
	GetObject(ctx context.Context, key string) ([]byte, error)

	// DeleteObjects removes objects in bulk; individual failures are
	// aggregated into the returned error
	DeleteObjects(ctx context.Context, keys []string) error
}
