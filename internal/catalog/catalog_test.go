package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/product-catalog/internal/models"
	"github.com/yourorg/product-catalog/internal/storage"
)

type fakeObject struct {
	data []byte
	etag string
}

// fakeStore is an in-memory BlobStore. Every write body is recorded so tests
// can assert the document stayed a JSON array at each step, and a gate hook
// lets tests interleave two writers deterministically.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	bodies  [][]byte
	version int
	seq     int
	gate    func(seq int)
	getErr  error
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]fakeObject)}
}

func (f *fakeStore) enterWrite() (int, func(int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq, f.gate
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, storage.ObjectInfo{}, f.getErr
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrNotFound
	}
	info := storage.ObjectInfo{Key: key, Size: int64(len(obj.data)), ETag: obj.etag}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (f *fakeStore) write(key string, data []byte) string {
	f.version++
	obj := fakeObject{data: data, etag: fmt.Sprintf("v%d", f.version)}
	f.objects[key] = obj
	f.bodies = append(f.bodies, data)
	return obj.etag
}

func (f *fakeStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	seq, gate := f.enterWrite()
	if gate != nil {
		gate(seq)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	return f.write(key, data), nil
}

func (f *fakeStore) PutIf(ctx context.Context, key string, body io.Reader, contentType, etag string) (string, error) {
	seq, gate := f.enterWrite()
	if gate != nil {
		gate(seq)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	cur, ok := f.objects[key]
	if etag == "" {
		if ok {
			return "", storage.ErrPreconditionFailed
		}
	} else if !ok || cur.etag != etag {
		return "", storage.ErrPreconditionFailed
	}
	return f.write(key, data), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []storage.ObjectInfo
	for k, obj := range f.objects {
		infos = append(infos, storage.ObjectInfo{Key: k, Size: int64(len(obj.data)), ETag: obj.etag})
	}
	return infos, nil
}

func (f *fakeStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (f *fakeStore) raw(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key].data
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func newTestStore(t *testing.T, strategy WriteStrategy) (*Store, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	return New(fs, strategy, zap.NewNop()), fs
}

func sampleProduct(title string) models.Product {
	return models.Product{
		Title:       title,
		Description: "organic apples",
		Category:    "fruit",
		StartDate:   "2024-04-01",
		EndDate:     "2024-10-31",
		Quantity:    "5",
		Unit:        "kg",
		Contact: models.Contact{
			Email:       "farm@example.com",
			LookupValue: "farm@example.com",
		},
		Address:         "Nagano",
		Manager:         "Sato",
		ModifiedDate:    "2024-04-01T00:00:00Z",
		LastUpdatedFrom: "Website",
	}
}

func assertArrays(t *testing.T, fs *fakeStore) {
	t.Helper()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i, b := range fs.bodies {
		var arr []json.RawMessage
		if err := json.Unmarshal(b, &arr); err != nil {
			t.Fatalf("write %d is not a JSON array: %v (%s)", i, err, b)
		}
	}
}

func TestListMissingDocument(t *testing.T) {
	s, _ := newTestStore(t, LastWriterWins)
	products, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("want empty catalog, got %d records", len(products))
	}
}

func TestListStoreFailure(t *testing.T) {
	s, fs := newTestStore(t, LastWriterWins)
	fs.getErr = errors.New("connection refused")
	if _, err := s.List(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
}

func TestListNormalizesLegacyDocument(t *testing.T) {
	s, fs := newTestStore(t, LastWriterWins)
	// A pre-convention document: UTF-8 BOM, surrounding whitespace, and a
	// lone object instead of an array.
	doc := "\ufeff \n {\"Title\":\"Desk\",\"単位\":\"個\"} \n"
	fs.objects[DocumentKey] = fakeObject{data: []byte(doc), etag: "v0"}

	products, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("want 1 record, got %d", len(products))
	}
	if products[0].Title != "Desk" || products[0].Unit != "個" {
		t.Fatalf("unexpected record: %+v", products[0])
	}
}

func TestAppendThenListRoundTrip(t *testing.T) {
	s, fs := newTestStore(t, LastWriterWins)
	ctx := context.Background()
	want := sampleProduct("Apples")
	if err := s.Append(ctx, want); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 record, got %d", len(got))
	}
	if got[0] != want {
		t.Fatalf("record changed in round trip:\n got %+v\nwant %+v", got[0], want)
	}
	assertArrays(t, fs)
}

func TestAppendAllowsDuplicateTitles(t *testing.T) {
	s, _ := newTestStore(t, LastWriterWins)
	ctx := context.Background()
	if err := s.Append(ctx, sampleProduct("Desk")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, sampleProduct("Desk")); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	products, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("want both duplicates kept, got %d records", len(products))
	}
}

func TestReplacePreservesUnpatchedFields(t *testing.T) {
	s, _ := newTestStore(t, LastWriterWins)
	ctx := context.Background()
	orig := sampleProduct("A")
	orig.Unit = "kg"
	orig.Quantity = "5"
	if err := s.Append(ctx, orig); err != nil {
		t.Fatalf("append: %v", err)
	}

	updated, err := s.Replace(ctx, "A", func(p models.Product) models.Product {
		p.Quantity = "7"
		return p
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if updated.Quantity != "7" || updated.Unit != "kg" || updated.Title != "A" {
		t.Fatalf("unexpected updated record: %+v", updated)
	}

	got, _ := s.List(ctx)
	if got[0].Unit != "kg" || got[0].Quantity != "7" {
		t.Fatalf("stored record lost fields: %+v", got[0])
	}
}

func TestReplaceNotFound(t *testing.T) {
	s, fs := newTestStore(t, LastWriterWins)
	ctx := context.Background()
	if err := s.Append(ctx, sampleProduct("A")); err != nil {
		t.Fatalf("append: %v", err)
	}
	writes := fs.writeCount()
	_, err := s.Replace(ctx, "missing", func(p models.Product) models.Product { return p })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if fs.writeCount() != writes {
		t.Fatalf("failed replace must not write the document")
	}
}

func TestReplaceMutatesFirstMatchOnly(t *testing.T) {
	s, _ := newTestStore(t, LastWriterWins)
	ctx := context.Background()
	first := sampleProduct("Desk")
	first.Quantity = "1"
	second := sampleProduct("Desk")
	second.Quantity = "2"
	if err := s.Append(ctx, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, second); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := s.Replace(ctx, "Desk", func(p models.Product) models.Product {
		p.Quantity = "9"
		return p
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	products, _ := s.List(ctx)
	if products[0].Quantity != "9" {
		t.Fatalf("first match not updated: %+v", products[0])
	}
	if products[1].Quantity != "2" {
		t.Fatalf("second match must stay untouched: %+v", products[1])
	}
}

func TestRemoveDeletesEveryMatch(t *testing.T) {
	s, fs := newTestStore(t, LastWriterWins)
	ctx := context.Background()
	for _, title := range []string{"Desk", "Chair", "Desk"} {
		if err := s.Append(ctx, sampleProduct(title)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	out := s.Remove(ctx, "Desk")
	if out.Result != Removed {
		t.Fatalf("want Removed, got %v (%v)", out.Result, out.Reason)
	}
	if out.Product.Title != "Desk" {
		t.Fatalf("outcome should carry the removed record, got %+v", out.Product)
	}

	products, _ := s.List(ctx)
	if len(products) != 1 || products[0].Title != "Chair" {
		t.Fatalf("want only Chair left, got %+v", products)
	}
	assertArrays(t, fs)
}

func TestRemoveMissingTitleIsNoop(t *testing.T) {
	s, fs := newTestStore(t, LastWriterWins)
	ctx := context.Background()
	if err := s.Append(ctx, sampleProduct("Desk")); err != nil {
		t.Fatalf("append: %v", err)
	}
	before := append([]byte(nil), fs.raw(DocumentKey)...)
	writes := fs.writeCount()

	out := s.Remove(ctx, "never-created")
	if out.Result != AlreadyAbsent {
		t.Fatalf("want AlreadyAbsent, got %v", out.Result)
	}
	if fs.writeCount() != writes {
		t.Fatalf("no-op remove must not rewrite the document")
	}
	if !bytes.Equal(fs.raw(DocumentKey), before) {
		t.Fatalf("document changed on no-op remove")
	}
}

func TestRemoveReportsFailure(t *testing.T) {
	s, fs := newTestStore(t, LastWriterWins)
	ctx := context.Background()
	if err := s.Append(ctx, sampleProduct("Desk")); err != nil {
		t.Fatalf("append: %v", err)
	}
	fs.putErr = errors.New("write timeout")

	out := s.Remove(ctx, "Desk")
	if out.Result != Failed {
		t.Fatalf("want Failed, got %v", out.Result)
	}
	if !errors.Is(out.Reason, ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable reason, got %v", out.Reason)
	}
}

func TestRemoveEmptiesToArray(t *testing.T) {
	s, fs := newTestStore(t, LastWriterWins)
	ctx := context.Background()
	if err := s.Append(ctx, sampleProduct("Desk")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if out := s.Remove(ctx, "Desk"); out.Result != Removed {
		t.Fatalf("remove: %v", out.Reason)
	}
	if got := string(fs.raw(DocumentKey)); got != "[]" {
		t.Fatalf("empty catalog must serialize as [], got %s", got)
	}
}

// Two writers that each read the same snapshot: under last-writer-wins the
// second write erases the first one's record. That lost update is the
// documented contract, not a bug to fix here.
func TestConcurrentAppendLastWriterWins(t *testing.T) {
	s, fs := newTestStore(t, LastWriterWins)
	ctx := context.Background()

	unblock := make(chan struct{})
	entered := make(chan struct{})
	fs.gate = func(seq int) {
		if seq == 1 {
			close(entered)
			<-unblock
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Append(ctx, sampleProduct("first-writer"))
	}()
	<-entered // first writer read the snapshot and is about to write

	if err := s.Append(ctx, sampleProduct("second-writer")); err != nil {
		t.Fatalf("second append: %v", err)
	}
	close(unblock)
	if err := <-errCh; err != nil {
		t.Fatalf("first append: %v", err)
	}

	products, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("lost-update contract: exactly one record must survive, got %d", len(products))
	}
	if products[0].Title != "first-writer" {
		t.Fatalf("the delayed writer should have won, got %q", products[0].Title)
	}
}

// Same interleaving under check-and-set: the delayed writer's conditional
// put fails, it rereads, and both records survive.
func TestConcurrentAppendCheckAndSet(t *testing.T) {
	s, fs := newTestStore(t, CheckAndSet)
	ctx := context.Background()

	// Seed so both writers start from an existing version.
	if err := s.Append(ctx, sampleProduct("seed")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	unblock := make(chan struct{})
	entered := make(chan struct{})
	fs.gate = func(seq int) {
		if seq == 2 { // seed used seq 1
			close(entered)
			<-unblock
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Append(ctx, sampleProduct("first-writer"))
	}()
	<-entered

	if err := s.Append(ctx, sampleProduct("second-writer")); err != nil {
		t.Fatalf("second append: %v", err)
	}
	close(unblock)
	if err := <-errCh; err != nil {
		t.Fatalf("first append: %v", err)
	}

	products, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("check-and-set must keep both writers, got %d records", len(products))
	}
}
