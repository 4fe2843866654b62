package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound indicates no blob exists under the requested key.
	ErrNotFound = errors.New("object not found")
	// ErrPreconditionFailed indicates a conditional write lost to another writer.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// BlobStore defines the object-store operations the catalog needs.
// Backends: S3 (or any S3-compatible endpoint) and a local badger store
// for development.
type BlobStore interface {
	// Get returns the blob content and its info. ErrNotFound when absent.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Put writes the blob, replacing any prior content, and returns the new ETag.
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	// PutIf writes the blob only when its current ETag matches etag, or when
	// etag is empty and no blob exists yet. ErrPreconditionFailed otherwise.
	PutIf(ctx context.Context, key string, body io.Reader, contentType, etag string) (string, error)
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns info for every blob whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// PresignGet returns a time-limited URL granting read access to key.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
