package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/product-catalog/internal/metrics"
	"github.com/yourorg/product-catalog/internal/normalize"
	"github.com/yourorg/product-catalog/internal/storage"
)

// SignTTL is how long presigned image URLs stay valid.
const SignTTL = 3600 * time.Second

// ErrStoreUnavailable indicates the image blob could not be written.
var ErrStoreUnavailable = errors.New("image store unavailable")

// Manager stores product image blobs and hands out presigned URLs for them.
type Manager struct {
	blobs storage.BlobStore
	log   *zap.Logger
	now   func() time.Time
}

func New(blobs storage.BlobStore, log *zap.Logger) *Manager {
	return &Manager{blobs: blobs, log: log, now: time.Now}
}

// Store writes the image under a key derived from the product title, the
// current time, and the uploaded file's extension, and returns that key.
// The timestamp keeps keys distinct when the same title is uploaded twice.
func (m *Manager) Store(ctx context.Context, title string, data io.Reader, filename, contentType string) (string, error) {
	key := fmt.Sprintf("%s-%d%s", normalize.KeySafe(title), m.now().UnixMilli(), strings.ToLower(path.Ext(filename)))
	if _, err := m.blobs.Put(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("%w: put %q: %v", ErrStoreUnavailable, key, err)
	}
	metrics.ImagesStored.Inc()
	return key, nil
}

// Sign produces a presigned GET URL for a stored key. Keys recorded as full
// paths are reduced to their final segment first. A failure degrades to
// ok=false instead of an error, so one unsignable image never fails a whole
// listing; callers fall back to the raw key.
func (m *Manager) Sign(ctx context.Context, key string) (url string, ok bool) {
	actual := key
	if i := strings.LastIndexByte(actual, '/'); i >= 0 {
		actual = actual[i+1:]
	}
	u, err := m.blobs.PresignGet(ctx, actual, SignTTL)
	if err != nil {
		metrics.SignFailures.Inc()
		m.log.Warn("presign failed", zap.String("key", actual), zap.Error(err))
		return "", false
	}
	return u, true
}

// Delete removes the image blob, best effort. A missing or undeletable
// image never blocks removal of the owning catalog record.
func (m *Manager) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := m.blobs.Delete(ctx, key); err != nil {
		m.log.Warn("image delete failed", zap.String("key", key), zap.Error(err))
	}
}
