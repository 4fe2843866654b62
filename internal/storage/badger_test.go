package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func newTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	b, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBadgerPutGet(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()

	etag, err := b.Put(ctx, "products.json", strings.NewReader("[]"), "application/json")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if etag == "" {
		t.Fatalf("put must return an etag")
	}

	rc, info, err := b.Get(ctx, "products.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, []byte("[]")) {
		t.Fatalf("content=%q", data)
	}
	if info.ETag != etag {
		t.Fatalf("etag mismatch: get=%q put=%q", info.ETag, etag)
	}
	if info.LastModified.IsZero() {
		t.Fatalf("missing LastModified")
	}
}

func TestBadgerGetMissing(t *testing.T) {
	b := newTestBadger(t)
	if _, _, err := b.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestBadgerEtagTracksContent(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	e1, _ := b.Put(ctx, "k", strings.NewReader("one"), "")
	e2, _ := b.Put(ctx, "k", strings.NewReader("two"), "")
	if e1 == e2 {
		t.Fatalf("etag must change with content")
	}
}

func TestBadgerPutIf(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()

	// Creation requires an empty etag.
	etag, err := b.PutIf(ctx, "doc", strings.NewReader("v1"), "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := b.PutIf(ctx, "doc", strings.NewReader("v1b"), "", ""); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("create over existing must fail, got %v", err)
	}

	// Replace with the right etag succeeds; a stale etag loses.
	etag2, err := b.PutIf(ctx, "doc", strings.NewReader("v2"), "", etag)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := b.PutIf(ctx, "doc", strings.NewReader("v3"), "", etag); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("stale etag must fail, got %v", err)
	}
	if _, err := b.PutIf(ctx, "doc", strings.NewReader("v3"), "", etag2); err != nil {
		t.Fatalf("fresh etag: %v", err)
	}
}

func TestBadgerDeleteIdempotent(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	if _, err := b.Put(ctx, "k", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if _, _, err := b.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}

func TestBadgerListPrefix(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	for _, k := range []string{"img/a.png", "img/b.png", "products.json"} {
		if _, err := b.Put(ctx, k, strings.NewReader(k), ""); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	infos, err := b.List(ctx, "img/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("want 2 keys under img/, got %d", len(infos))
	}
	all, err := b.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 keys, got %d", len(all))
	}
}

func TestBadgerPresignIsLocalPath(t *testing.T) {
	b := newTestBadger(t)
	u, err := b.PresignGet(context.Background(), "Desk-1.png", time.Hour)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if u != "/blob/Desk-1.png" {
		t.Fatalf("url=%q", u)
	}
}
