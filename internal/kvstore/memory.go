package kvstore

import (
	"bytes"
	"context"
	"sync"
)

// MemoryBackend is a plain in-process store with no disk artifacts,
// for config.temporary == true (spec §4.1) and for unit tests that
// want a fast, disposable Backend.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string][]byte
	trees   map[string]*memoryTree
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string][]byte),
		trees:   make(map[string]*memoryTree),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[string(key)] = append([]byte{}, value...)
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[string(key)]
	if ok {
		delete(m.entries, string(key))
	}
	return ok, nil
}

func (m *MemoryBackend) ScanPrefix(_ context.Context, prefix []byte) ([]KeyValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []KeyValue
	for k, v := range m.entries {
		if bytes.HasPrefix([]byte(k), prefix) {
			out = append(out, KeyValue{Key: []byte(k), Value: append([]byte{}, v...)})
		}
	}
	return out, nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]byte)
	return nil
}

func (m *MemoryBackend) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MemoryBackend) OpenTree(name string) (Tree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trees[name]
	if !ok {
		t = &memoryTree{entries: make(map[string][]byte)}
		m.trees[name] = t
	}
	return t, nil
}

func (m *MemoryBackend) Flush(context.Context) error { return nil }

func (m *MemoryBackend) SizeOnDisk() (int64, error) { return 0, nil }

func (m *MemoryBackend) IsTemporary() bool { return true }

func (m *MemoryBackend) Stats() (Stats, error) {
	m.mu.RLock()
	total := len(m.entries)
	treeCount := len(m.trees)
	m.mu.RUnlock()

	for _, t := range m.snapshotTrees() {
		n, _ := t.Len(context.Background())
		total += n
	}
	return Stats{
		TotalEntries:   int64(total),
		TotalSizeBytes: 0,
		DiskSizeBytes:  0,
		TreeCount:      treeCount,
		IsTemporary:    true,
	}, nil
}

func (m *MemoryBackend) snapshotTrees() []*memoryTree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*memoryTree, 0, len(m.trees))
	for _, t := range m.trees {
		out = append(out, t)
	}
	return out
}

func (m *MemoryBackend) Close() error { return nil }

// memoryTree is a named sub-store backed by its own map.
type memoryTree struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func (t *memoryTree) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (t *memoryTree) Set(_ context.Context, key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[string(key)] = append([]byte{}, value...)
	return nil
}

func (t *memoryTree) Remove(_ context.Context, key []byte) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[string(key)]
	if ok {
		delete(t.entries, string(key))
	}
	return ok, nil
}

func (t *memoryTree) ScanPrefix(_ context.Context, prefix []byte) ([]KeyValue, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []KeyValue
	for k, v := range t.entries {
		if bytes.HasPrefix([]byte(k), prefix) {
			out = append(out, KeyValue{Key: []byte(k), Value: append([]byte{}, v...)})
		}
	}
	return out, nil
}

func (t *memoryTree) Clear(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string][]byte)
	return nil
}

func (t *memoryTree) Len(_ context.Context) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries), nil
}
