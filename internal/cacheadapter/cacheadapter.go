package cacheadapter

import (
	"context"
	"encoding/binary"

	lspderrors "github.com/lspdaemon/lspd/internal/errors"
	"github.com/lspdaemon/lspd/internal/kvstore"
)

// metaTreeName holds adapter-level bookkeeping (currently just the
// hit/miss counters) separately from cached LSP payloads, so a prefix
// scan or clear over the default namespace never touches them.
const metaTreeName = "cacheadapter_meta"

const (
	hitCountKey  = "hit_count"
	missCountKey = "miss_count"
)

// Stats is the get_stats() result of spec §4.3. It is always computed
// fresh from storage — never served from an in-process cache, since
// multiple Adapter instances across processes may share one backend
// and stale counters would diverge from persisted reality.
type Stats struct {
	TotalEntries   int64
	TotalSizeBytes int64
	HitCount       int64
	MissCount      int64
	DiskSizeBytes  int64
	IsTemporary    bool
}

// Adapter is the storage-independent cache surface the dispatcher
// uses for "did we already compute this?" (spec §4.3, component C3).
// It wraps a C1 Backend; hit/miss counters are persisted in the
// backend's own meta tree, never in process memory, so GetStats is
// never a snapshot that can diverge from another process's adapter
// pointed at the same store.
type Adapter struct {
	backend kvstore.Backend
}

// New wraps backend as a cache adapter.
func New(backend kvstore.Backend) *Adapter {
	return &Adapter{backend: backend}
}

// GetUniversalEntry returns the cached payload for storageKey, or
// (nil, false) if absent. Parse failures on storageKey's structure are
// not this method's concern; callers construct keys via Key.Format.
func (a *Adapter) GetUniversalEntry(ctx context.Context, storageKey string) ([]byte, bool, error) {
	return a.backend.Get(ctx, []byte(storageKey))
}

// SetUniversalEntry upserts storageKey to payload.
func (a *Adapter) SetUniversalEntry(ctx context.Context, storageKey string, payload []byte) error {
	return a.backend.Set(ctx, []byte(storageKey), payload)
}

// ClearUniversalEntriesByPrefix removes every entry whose key has
// prefix, returning the count removed.
func (a *Adapter) ClearUniversalEntriesByPrefix(ctx context.Context, prefix string) (int, error) {
	kvs, err := a.backend.ScanPrefix(ctx, []byte(prefix))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, kv := range kvs {
		ok, err := a.backend.Remove(ctx, kv.Key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// IterUniversalEntries returns every (key, payload) pair in the
// backend's default namespace.
func (a *Adapter) IterUniversalEntries(ctx context.Context) ([]kvstore.KeyValue, error) {
	return a.backend.ScanPrefix(ctx, nil)
}

// UpdateHitMissCounts persists Δhits and Δmisses into the backend's
// meta tree (spec §4.3: "statistics are never cached in process
// memory"). A read-modify-write against the same tree any other
// Adapter instance on this store also writes through, so a fresh
// GetStats call — even from a different process — observes the
// combined total.
func (a *Adapter) UpdateHitMissCounts(ctx context.Context, deltaHits, deltaMisses int64) error {
	if deltaHits == 0 && deltaMisses == 0 {
		return nil
	}
	tree, err := a.backend.OpenTree(metaTreeName)
	if err != nil {
		return lspderrors.NewOperationFailedError("open_tree", metaTreeName, err)
	}
	if deltaHits != 0 {
		if err := addCounter(ctx, tree, hitCountKey, deltaHits); err != nil {
			return err
		}
	}
	if deltaMisses != 0 {
		if err := addCounter(ctx, tree, missCountKey, deltaMisses); err != nil {
			return err
		}
	}
	return nil
}

func addCounter(ctx context.Context, tree kvstore.Tree, key string, delta int64) error {
	cur, err := readCounter(ctx, tree, key)
	if err != nil {
		return err
	}
	if err := tree.Set(ctx, []byte(key), encodeCounter(cur+delta)); err != nil {
		return lspderrors.NewOperationFailedError("set", key, err)
	}
	return nil
}

func readCounter(ctx context.Context, tree kvstore.Tree, key string) (int64, error) {
	v, ok, err := tree.Get(ctx, []byte(key))
	if err != nil {
		return 0, lspderrors.NewOperationFailedError("get", key, err)
	}
	if !ok {
		return 0, nil
	}
	return decodeCounter(v), nil
}

func encodeCounter(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeCounter(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// GetStats returns a fresh snapshot: every field, including hit/miss
// counters, is read from storage on every call, never cached in
// process memory.
func (a *Adapter) GetStats(ctx context.Context) (Stats, error) {
	backendStats, err := a.backend.Stats()
	if err != nil {
		return Stats{}, err
	}

	tree, err := a.backend.OpenTree(metaTreeName)
	if err != nil {
		return Stats{}, lspderrors.NewOperationFailedError("open_tree", metaTreeName, err)
	}
	hits, err := readCounter(ctx, tree, hitCountKey)
	if err != nil {
		return Stats{}, err
	}
	misses, err := readCounter(ctx, tree, missCountKey)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalEntries:   backendStats.TotalEntries,
		TotalSizeBytes: backendStats.TotalSizeBytes,
		HitCount:       hits,
		MissCount:      misses,
		DiskSizeBytes:  backendStats.DiskSizeBytes,
		IsTemporary:    backendStats.IsTemporary,
	}, nil
}
