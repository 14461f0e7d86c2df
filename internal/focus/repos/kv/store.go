// Package kv provides durable key-value namespaces backed by a single bbolt
// file. Every Set call is one bbolt transaction, so all keys written
// together become visible together or not at all.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"
)

// Namespace is a logical key-value store inside the database.
type Namespace interface {
	// Get returns the values of the requested keys. Missing keys are absent
	// from the result.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	// Set writes all values atomically.
	Set(ctx context.Context, values map[string][]byte) error
	// Delete removes keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Keys lists every key in the namespace in byte order.
	Keys(ctx context.Context) ([]string, error)
}

// ErrUnknownNamespace is returned for namespaces not declared at Open.
var ErrUnknownNamespace = errors.New("kv: unknown namespace")

// ErrLocked is returned by Open when another process holds the database.
var ErrLocked = errors.New("kv: database is locked by another process")

// DB is an opened key-value database.
type DB struct {
	db    *bbolt.DB
	names map[string]struct{}
}

// bucketCreator is the subset of *bbolt.Tx used to create buckets.
type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

// ensureBuckets creates the namespace buckets.
func ensureBuckets(tx bucketCreator, names ...string) error {
	for _, n := range names {
		if _, err := tx.CreateBucketIfNotExists([]byte(n)); err != nil {
			return fmt.Errorf("kv: create namespace %q: %w", n, err)
		}
	}
	return nil
}

// ensureBucketsFn is swapped in tests to exercise bucket creation failures.
var ensureBucketsFn = func(tx bucketCreator, names ...string) error {
	return ensureBuckets(tx, names...)
}

// Open opens (or creates) the database at path and ensures the namespaces exist.
// The parent directory is created when missing.
func Open(path string, namespaces ...string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("kv: mkdir %s: %w", dir, err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if errors.Is(err, bberrors.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		return ensureBucketsFn(tx, namespaces...)
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	names := make(map[string]struct{}, len(namespaces))
	for _, n := range namespaces {
		names[n] = struct{}{}
	}
	return &DB{db: db, names: names}, nil
}

// Bolt exposes the underlying handle so other stores can share the file.
func (d *DB) Bolt() *bbolt.DB { return d.db }

// Path returns the database file path.
func (d *DB) Path() string { return d.db.Path() }

// Close releases the database.
func (d *DB) Close() error { return d.db.Close() }

// Namespace returns the named namespace. Using a name that was not declared
// at Open yields a namespace whose operations fail with ErrUnknownNamespace.
func (d *DB) Namespace(name string) Namespace {
	return &namespace{db: d.db, bucket: []byte(name), known: d.has(name)}
}

func (d *DB) has(name string) bool {
	_, ok := d.names[name]
	return ok
}

type namespace struct {
	db     *bbolt.DB
	bucket []byte
	known  bool
}

func (n *namespace) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !n.known {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, n.bucket)
	}
	return nil
}

func (n *namespace) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if err := n.check(ctx); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	err := n.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return nil
		}
		for _, k := range keys {
			if v := b.Get([]byte(k)); v != nil {
				// values are only valid for the life of the transaction
				cp := make([]byte, len(v))
				copy(cp, v)
				out[k] = cp
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (n *namespace) Set(ctx context.Context, values map[string][]byte) error {
	if err := n.check(ctx); err != nil {
		return err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return n.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(n.bucket)
		for _, k := range keys {
			if err := b.Put([]byte(k), values[k]); err != nil {
				return fmt.Errorf("kv: put %q: %w", k, err)
			}
		}
		return nil
	})
}

func (n *namespace) Delete(ctx context.Context, keys ...string) error {
	if err := n.check(ctx); err != nil {
		return err
	}
	return n.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(n.bucket)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return fmt.Errorf("kv: delete %q: %w", k, err)
			}
		}
		return nil
	})
}

func (n *namespace) Keys(ctx context.Context) ([]string, error) {
	if err := n.check(ctx); err != nil {
		return nil, err
	}
	var keys []string
	err := n.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(n.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}
