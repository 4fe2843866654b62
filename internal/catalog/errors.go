package catalog

import "errors"

var (
	// ErrStoreUnavailable indicates the backing object store failed.
	ErrStoreUnavailable = errors.New("catalog store unavailable")
	// ErrNotFound indicates no record matched the given title.
	ErrNotFound = errors.New("product not found")

	// errNoop signals a mutation that matched nothing and skipped its write.
	errNoop = errors.New("no-op")
)
