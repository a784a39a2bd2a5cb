package kvstore

import (
	"bytes"
	"context"

	badger "github.com/dgraph-io/badger/v4"

	lspderrors "github.com/lspdaemon/lspd/internal/errors"
)

// defaultNS and treeNS partition one *badger.DB into the default
// namespace and named trees, since Badger itself has no notion of
// separate buckets the way bbolt does.
const (
	defaultNS = 'd'
	treeNS    = 't'
)

// BadgerBackend is the embedded LSM/B-tree file store of spec §4.1.
type BadgerBackend struct {
	db   *badger.DB
	path string
}

func openBadger(cfg Config) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(nil)
	if cfg.CacheCapacityBytes > 0 {
		opts = opts.WithBlockCacheSize(cfg.CacheCapacityBytes)
	}
	if cfg.Compression {
		opts = opts.WithCompression(1) // snappy; CompressionFactor tunes zstd level only
		if cfg.CompressionFactor > 0 {
			opts = opts.WithZSTDCompressionLevel(cfg.CompressionFactor)
		}
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, lspderrors.NewStorageConfigurationError(cfg.Path, err)
	}
	return &BadgerBackend{db: db, path: cfg.Path}, nil
}

func nsKey(ns byte, name string, key []byte) []byte {
	buf := make([]byte, 0, 2+len(name)+1+len(key))
	buf = append(buf, ns, ':')
	buf = append(buf, name...)
	buf = append(buf, ':')
	buf = append(buf, key...)
	return buf
}

func (b *BadgerBackend) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	return badgerGet(b.db, nsKey(defaultNS, "", key))
}

func (b *BadgerBackend) Set(_ context.Context, key, value []byte) error {
	return badgerSet(b.db, nsKey(defaultNS, "", key), value)
}

func (b *BadgerBackend) Remove(_ context.Context, key []byte) (bool, error) {
	return badgerRemove(b.db, nsKey(defaultNS, "", key))
}

func (b *BadgerBackend) ScanPrefix(_ context.Context, prefix []byte) ([]KeyValue, error) {
	return badgerScan(b.db, nsKey(defaultNS, "", nil), prefix)
}

func (b *BadgerBackend) Clear(_ context.Context) error {
	return badgerClearPrefix(b.db, nsKey(defaultNS, "", nil))
}

func (b *BadgerBackend) Len(ctx context.Context) (int, error) {
	kvs, err := b.ScanPrefix(ctx, nil)
	if err != nil {
		return 0, err
	}
	return len(kvs), nil
}

func (b *BadgerBackend) OpenTree(name string) (Tree, error) {
	return &badgerTree{db: b.db, name: name}, nil
}

func (b *BadgerBackend) Flush(context.Context) error {
	return b.db.Sync()
}

func (b *BadgerBackend) SizeOnDisk() (int64, error) {
	lsm, vlog := b.db.Size()
	return lsm + vlog, nil
}

func (b *BadgerBackend) IsTemporary() bool { return false }

func (b *BadgerBackend) Stats() (Stats, error) {
	total, err := b.Len(context.Background())
	if err != nil {
		return Stats{}, err
	}
	diskSize, err := b.SizeOnDisk()
	if err != nil {
		return Stats{}, err
	}
	trees, err := b.listTreeNames()
	if err != nil {
		return Stats{}, err
	}
	treeEntries, err := badgerScan(b.db, []byte{treeNS, ':'}, nil)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalEntries:   int64(total + len(treeEntries)),
		TotalSizeBytes: diskSize,
		DiskSizeBytes:  diskSize,
		TreeCount:      len(trees),
		IsTemporary:    false,
	}, nil
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

// listTreeNames scans the tree namespace for distinct tree name
// segments, for stats reporting only.
func (b *BadgerBackend) listTreeNames() ([]string, error) {
	seen := map[string]struct{}{}
	prefix := []byte{treeNS, ':'}
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			rest := k[len(prefix):]
			if idx := bytes.IndexByte(rest, ':'); idx >= 0 {
				seen[string(rest[:idx])] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, lspderrors.NewOperationFailedError("scan", "tree-names", err)
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	return names, nil
}

// badgerTree is a named sub-store, implemented as a key-prefixed view
// over the same *badger.DB as the owning backend.
type badgerTree struct {
	db   *badger.DB
	name string
}

func (t *badgerTree) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	return badgerGet(t.db, nsKey(treeNS, t.name, key))
}

func (t *badgerTree) Set(_ context.Context, key, value []byte) error {
	return badgerSet(t.db, nsKey(treeNS, t.name, key), value)
}

func (t *badgerTree) Remove(_ context.Context, key []byte) (bool, error) {
	return badgerRemove(t.db, nsKey(treeNS, t.name, key))
}

func (t *badgerTree) ScanPrefix(_ context.Context, prefix []byte) ([]KeyValue, error) {
	return badgerScan(t.db, nsKey(treeNS, t.name, nil), prefix)
}

func (t *badgerTree) Clear(_ context.Context) error {
	return badgerClearPrefix(t.db, nsKey(treeNS, t.name, nil))
}

func (t *badgerTree) Len(ctx context.Context) (int, error) {
	kvs, err := t.ScanPrefix(ctx, nil)
	if err != nil {
		return 0, err
	}
	return len(kvs), nil
}

// --- shared badger primitives, namespace-agnostic ---

func badgerGet(db *badger.DB, fullKey []byte) ([]byte, bool, error) {
	var value []byte
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fullKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, lspderrors.NewOperationFailedError("get", string(fullKey), err)
	}
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

func badgerSet(db *badger.DB, fullKey, value []byte) error {
	err := db.Update(func(txn *badger.Txn) error {
		return txn.Set(fullKey, value)
	})
	if err != nil {
		return lspderrors.NewOperationFailedError("set", string(fullKey), err)
	}
	return nil
}

func badgerRemove(db *badger.DB, fullKey []byte) (bool, error) {
	existed := false
	err := db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(fullKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return txn.Delete(fullKey)
	})
	if err != nil {
		return false, lspderrors.NewOperationFailedError("remove", string(fullKey), err)
	}
	return existed, nil
}

func badgerScan(db *badger.DB, nsRoot, suffixPrefix []byte) ([]KeyValue, error) {
	fullPrefix := append(append([]byte{}, nsRoot...), suffixPrefix...)
	var out []KeyValue
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			key := item.KeyCopy(nil)[len(nsRoot):]
			out = append(out, KeyValue{Key: key, Value: val})
		}
		return nil
	})
	if err != nil {
		return nil, lspderrors.NewOperationFailedError("scan_prefix", string(suffixPrefix), err)
	}
	return out, nil
}

func badgerClearPrefix(db *badger.DB, nsRoot []byte) error {
	var keys [][]byte
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(nsRoot); it.ValidForPrefix(nsRoot); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return lspderrors.NewOperationFailedError("clear", string(nsRoot), err)
	}
	return db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
