// Package storage defines the blob store holding raw file bytes.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/starford/facdocs/internal/models"
)

// Provider is the interface for blob operations. Paths are slash-separated
// and relative to the store root (e.g. files/plant-a/<id>/report.pdf).
type Provider interface {
	// Put streams r to path, replacing any existing object, and returns the
	// number of bytes written.
	Put(ctx context.Context, path string, r io.Reader, contentType string) (int64, error)
	// Open returns a reader for the object at path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Exists reports whether an object is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes the object at path. A missing object is apperr.ErrNotFound.
	Delete(ctx context.Context, path string) error
	// SignedURL returns a time-limited download URL for path.
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	// List returns every object whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]models.BlobInfo, error)
}
