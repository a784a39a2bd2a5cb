// Package kvstore implements the storage backend contract (spec §4.1,
// component C1): a byte-level key/value store with named sub-stores
// ("trees"), prefix scan, atomic batch writes, flush, and size
// accounting, behind one capability interface with two
// implementations — an embedded LSM file store (Badger) and a plain
// in-memory store.
package kvstore

import (
	"context"
	"time"
)

// KV is one data operation's sub-store: the default namespace and
// every named tree implement it identically.
type KV interface {
	// Get returns the value for key, or (nil, false) if absent.
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	// Set upserts key to value.
	Set(ctx context.Context, key, value []byte) error
	// Remove deletes key, reporting whether it existed.
	Remove(ctx context.Context, key []byte) (bool, error)
	// ScanPrefix returns every (key, value) pair whose key has prefix.
	ScanPrefix(ctx context.Context, prefix []byte) ([]KeyValue, error)
	// Clear removes every entry in this sub-store.
	Clear(ctx context.Context) error
	// Len returns the number of entries in this sub-store. On a Backend
	// it counts the default namespace only; Stats reports the total
	// across the default namespace and every tree.
	Len(ctx context.Context) (int, error)
}

// KeyValue is one scan result pair.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Tree is a named sub-store with the same data operations as the
// default namespace, plus Len.
type Tree interface {
	KV
}

// Backend is the full storage contract of spec §4.1. Backend itself
// embeds KV for the default namespace.
type Backend interface {
	KV

	// OpenTree returns (creating if necessary) a named sub-store.
	OpenTree(name string) (Tree, error)

	// Flush commits any buffered writes to durable storage. For
	// temporary backends this is a no-op.
	Flush(ctx context.Context) error

	// SizeOnDisk reports the backend's on-disk footprint in bytes. May
	// be estimated; zero for a temporary backend.
	SizeOnDisk() (int64, error)

	// IsTemporary reports whether this backend persists no disk
	// artifacts (config.temporary == true at Open).
	IsTemporary() bool

	// Stats returns a snapshot of backend-wide statistics.
	Stats() (Stats, error)

	// Close releases any resources (file handles, background
	// goroutines) held by the backend.
	Close() error
}

// Stats is the §4.1 stats() result.
type Stats struct {
	TotalEntries   int64
	TotalSizeBytes int64 // may be estimated
	DiskSizeBytes  int64
	TreeCount      int
	IsTemporary    bool
}

// Config configures Open (spec §4.1).
type Config struct {
	// Path is the on-disk directory for a file-backed backend. It is
	// ignored when Temporary is set.
	Path string
	// Temporary, if true, guarantees no disk artifacts are created.
	Temporary bool
	// CacheCapacityBytes bounds the backend's in-memory block cache,
	// where the underlying engine supports one.
	CacheCapacityBytes int64
	// Compression enables value compression, where supported.
	Compression bool
	// CompressionFactor tunes the compression level (engine-specific
	// meaning; 0 selects the engine default).
	CompressionFactor int
	// FlushInterval is accepted but not acted on by either backend: no
	// periodic background Flush is started, and data is flushed only
	// by explicit Flush calls.
	FlushInterval time.Duration
}
