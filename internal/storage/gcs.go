package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/models"
)

// GCS implements Provider on a Google Cloud Storage bucket. Download URLs
// are V4 signed URLs issued with the client credentials.
type GCS struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// NewGCS opens a client for bucket. credentialsFile may be empty to use
// application default credentials.
func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket)}, nil
}

// Close releases the client.
func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) Put(ctx context.Context, path string, r io.Reader, contentType string) (int64, error) {
	// Cancelling the writer context aborts the upload without creating the object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.bucket.Object(path).NewWriter(wctx)
	w.ContentType = contentType
	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return 0, fmt.Errorf("storage: gcs write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("storage: gcs finalize %s: %w", path, err)
	}
	return n, nil
}

func (g *GCS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	rd, err := g.bucket.Object(path).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, apperr.NotFound("blob %s not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: gcs open %s: %w", path, err)
	}
	return rd, nil
}

func (g *GCS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := g.bucket.Object(path).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: gcs attrs %s: %w", path, err)
	}
	return true, nil
}

func (g *GCS) Delete(ctx context.Context, path string) error {
	err := g.bucket.Object(path).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return apperr.NotFound("blob %s not found", path)
	}
	if err != nil {
		return fmt.Errorf("storage: gcs delete %s: %w", path, err)
	}
	return nil
}

func (g *GCS) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	u, err := g.bucket.SignedURL(path, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("storage: gcs sign %s: %w", path, err)
	}
	return u, nil
}

func (g *GCS) List(ctx context.Context, prefix string) ([]models.BlobInfo, error) {
	it := g.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	var out []models.BlobInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: gcs list %s: %w", prefix, err)
		}
		out = append(out, models.BlobInfo{Path: attrs.Name, Size: attrs.Size, UpdatedAt: attrs.Updated})
	}
	return out, nil
}

var (
	_ Provider = (*FS)(nil)
	_ Provider = (*GCS)(nil)
)
