package repository

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for durable artifact storage.
// Implementations should be provided by the infrastructure layer (e.g. MinIO, S3).
type ObjectStorage interface {
	// Upload stores an object and returns its permanent public URL.
	// key is the object path within the bucket (e.g. "reels/{id}/master.m3u8").
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)

	// Delete removes an object. Deleting a key that does not exist is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists in the storage.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all object keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
