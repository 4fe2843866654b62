package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/yourorg/product-catalog/internal/metrics"
	"github.com/yourorg/product-catalog/internal/models"
	"github.com/yourorg/product-catalog/internal/storage"
)

// DocumentKey is the well-known object key of the catalog document.
const DocumentKey = "products.json"

// WriteStrategy selects how catalog writes behave under concurrent writers.
type WriteStrategy int

const (
	// LastWriterWins performs one unconditional overwrite of the document.
	// Two concurrent read-modify-write cycles can each read the same prior
	// snapshot and the later write erases the earlier one. This is the
	// default contract.
	LastWriterWins WriteStrategy = iota
	// CheckAndSet retries the whole read-modify-write cycle when the
	// document's ETag changed between the read and the write.
	CheckAndSet
)

// ParseStrategy maps the CATALOG_WRITE_STRATEGY env value to a strategy.
func ParseStrategy(s string) WriteStrategy {
	if s == "cas" {
		return CheckAndSet
	}
	return LastWriterWins
}

// DeleteResult classifies what Remove did.
type DeleteResult int

const (
	Removed DeleteResult = iota
	AlreadyAbsent
	Failed
)

// DeleteOutcome reports the result of a Remove, so the API boundary decides
// visibly whether to surface a failure or mask it.
type DeleteOutcome struct {
	Result  DeleteResult
	Product models.Product // first removed record, set when Result == Removed
	Reason  error          // set when Result == Failed
}

// Store provides list/append/replace/remove over the single catalog
// document. The underlying store only offers whole-object get/put, so every
// mutation is a full read-modify-write of the document.
type Store struct {
	blobs    storage.BlobStore
	strategy WriteStrategy
	log      *zap.Logger
}

func New(blobs storage.BlobStore, strategy WriteStrategy, log *zap.Logger) *Store {
	return &Store{blobs: blobs, strategy: strategy, log: log}
}

// decodeDocument parses the catalog document. A UTF-8 BOM, present in
// documents uploaded by Windows tooling, is stripped first. Documents
// written before the array convention hold a single object; those are
// normalized to a one-element catalog.
func decodeDocument(data []byte) ([]models.Product, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("\ufeff"))
	var products []models.Product
	if err := json.Unmarshal(data, &products); err == nil {
		return products, nil
	}
	var single models.Product
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parse catalog document: %w", err)
	}
	return []models.Product{single}, nil
}

// load fetches and parses the document, returning its records and the ETag
// of the version read. A missing document is an empty catalog.
func (s *Store) load(ctx context.Context) ([]models.Product, string, error) {
	rc, info, err := s.blobs.Get(ctx, DocumentKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.Product{}, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	metrics.DocumentReads.Inc()
	products, err := decodeDocument(data)
	if err != nil {
		return nil, "", err
	}
	return products, info.ETag, nil
}

// save replaces the whole document. The written value is always a JSON
// array, even when empty.
func (s *Store) save(ctx context.Context, products []models.Product, etag string) error {
	if products == nil {
		products = []models.Product{}
	}
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode catalog document: %w", err)
	}
	switch s.strategy {
	case CheckAndSet:
		_, err = s.blobs.PutIf(ctx, DocumentKey, bytes.NewReader(data), "application/json", etag)
	default:
		_, err = s.blobs.Put(ctx, DocumentKey, bytes.NewReader(data), "application/json")
	}
	if err != nil {
		if errors.Is(err, storage.ErrPreconditionFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	metrics.DocumentWrites.Inc()
	return nil
}

// mutate runs one read-modify-write cycle over the document. Under
// CheckAndSet a cycle that lost to a concurrent writer is retried with
// backoff on a fresh snapshot; under LastWriterWins the write is
// unconditional.
func (s *Store) mutate(ctx context.Context, fn func([]models.Product) ([]models.Product, error)) error {
	attempt := func(ctx context.Context) error {
		products, etag, err := s.load(ctx)
		if err != nil {
			return err
		}
		next, err := fn(products)
		if err != nil {
			return err
		}
		if err := s.save(ctx, next, etag); err != nil {
			if errors.Is(err, storage.ErrPreconditionFailed) {
				metrics.WriteConflicts.Inc()
				s.log.Debug("catalog write conflict, retrying", zap.String("etag", etag))
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	}
	if s.strategy != CheckAndSet {
		return attempt(ctx)
	}
	backoff := retry.WithMaxRetries(4, retry.NewExponential(50*time.Millisecond))
	return retry.Do(ctx, backoff, attempt)
}

// List returns every record in the catalog document.
func (s *Store) List(ctx context.Context) ([]models.Product, error) {
	products, _, err := s.load(ctx)
	return products, err
}

// Append adds the record at the end of the document. Titles are not checked
// for uniqueness; a duplicate title is accepted and later Replace and Remove
// calls act on matches, first match for Replace.
func (s *Store) Append(ctx context.Context, p models.Product) error {
	return s.mutate(ctx, func(products []models.Product) ([]models.Product, error) {
		return append(products, p), nil
	})
}

// Replace applies updater to the first record whose Title equals title and
// writes the document back. The updater receives the stored record, so
// fields it leaves alone are preserved. ErrNotFound when nothing matches.
func (s *Store) Replace(ctx context.Context, title string, updater func(models.Product) models.Product) (models.Product, error) {
	var updated models.Product
	err := s.mutate(ctx, func(products []models.Product) ([]models.Product, error) {
		for i := range products {
			if products[i].Title == title {
				updated = updater(products[i])
				products[i] = updated
				return products, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return models.Product{}, err
	}
	return updated, nil
}

// Remove filters out every record whose Title equals title. When nothing
// matches the document is left untouched and the outcome is AlreadyAbsent;
// callers treat that as success.
func (s *Store) Remove(ctx context.Context, title string) DeleteOutcome {
	var out DeleteOutcome
	err := s.mutate(ctx, func(products []models.Product) ([]models.Product, error) {
		out = DeleteOutcome{Result: AlreadyAbsent}
		kept := make([]models.Product, 0, len(products))
		for _, p := range products {
			if p.Title == title {
				if out.Result != Removed {
					out = DeleteOutcome{Result: Removed, Product: p}
				}
				continue
			}
			kept = append(kept, p)
		}
		if out.Result == AlreadyAbsent {
			return nil, errNoop
		}
		return kept, nil
	})
	if errors.Is(err, errNoop) {
		return out
	}
	if err != nil {
		return DeleteOutcome{Result: Failed, Reason: err}
	}
	return out
}

// ReplaceAll overwrites the whole document with the given records. Used by
// the importer when migrating a catalog wholesale.
func (s *Store) ReplaceAll(ctx context.Context, products []models.Product) error {
	return s.mutate(ctx, func([]models.Product) ([]models.Product, error) {
		return products, nil
	})
}

// Find returns the first record whose Title equals title, without holding
// any claim on the document staying that way.
func (s *Store) Find(ctx context.Context, title string) (models.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return models.Product{}, err
	}
	for _, p := range products {
		if p.Title == title {
			return p, nil
		}
	}
	return models.Product{}, ErrNotFound
}
