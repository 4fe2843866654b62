package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key layout: blob content under "d:<key>", write time under "m:<key>".
const (
	dataPrefix = "d:"
	metaPrefix = "m:"
)

// BadgerStore is a local BlobStore used for development and tests when no
// object-storage bucket is available. PresignGet returns paths under /blob/
// that the API serves directly instead of signed URLs.
type BadgerStore struct {
	db *badger.DB
}

func NewBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func etagOf(data []byte) string {
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

func (b *BadgerStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	var data []byte
	var mtime time.Time
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if mi, err := txn.Get([]byte(metaPrefix + key)); err == nil {
			raw, err := mi.ValueCopy(nil)
			if err == nil && len(raw) == 8 {
				mtime = time.Unix(0, int64(binary.BigEndian.Uint64(raw)))
			}
		}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return nil, ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	info := ObjectInfo{Key: key, Size: int64(len(data)), ETag: etagOf(data), LastModified: mtime}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (b *BadgerStore) put(key string, data []byte) error {
	var stamp [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(time.Now().UnixNano()))
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataPrefix+key), data); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+key), stamp[:])
	})
}

func (b *BadgerStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if err := b.put(key, data); err != nil {
		return "", err
	}
	return etagOf(data), nil
}

func (b *BadgerStore) PutIf(ctx context.Context, key string, body io.Reader, contentType, etag string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataPrefix + key))
		switch {
		case err == badger.ErrKeyNotFound:
			if etag != "" {
				return ErrPreconditionFailed
			}
		case err != nil:
			return err
		default:
			current, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if etagOf(current) != etag {
				return ErrPreconditionFailed
			}
		}
		var stamp [8]byte
		binary.BigEndian.PutUint64(stamp[:], uint64(time.Now().UnixNano()))
		if err := txn.Set([]byte(dataPrefix+key), data); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+key), stamp[:])
	})
	if err != nil {
		return "", err
	}
	return etagOf(data), nil
}

func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(dataPrefix + key)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete([]byte(metaPrefix + key)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
}

func (b *BadgerStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(dataPrefix + prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), dataPrefix)
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			info := ObjectInfo{Key: key, Size: int64(len(data)), ETag: etagOf(data)}
			if mi, err := txn.Get([]byte(metaPrefix + key)); err == nil {
				raw, err := mi.ValueCopy(nil)
				if err == nil && len(raw) == 8 {
					info.LastModified = time.Unix(0, int64(binary.BigEndian.Uint64(raw)))
				}
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// PresignGet has nothing to sign locally; it hands out the API's own blob
// route so the UI flow stays identical across backends.
func (b *BadgerStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "/blob/" + url.PathEscape(key), nil
}
