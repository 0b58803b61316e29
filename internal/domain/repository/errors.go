package repository

import "errors"

var (
	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrObjectNotFound is returned when an object cannot be found.
	ErrObjectNotFound = errors.New("object not found")
)
