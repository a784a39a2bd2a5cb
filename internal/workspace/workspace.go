// Package workspace routes an absolute, canonicalized workspace path
// to its own cache backend (spec §4.6, component C6), creating one
// lazily on first access and converging concurrent creators onto a
// single instance.
package workspace

import (
	"context"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"

	lspderrors "github.com/lspdaemon/lspd/internal/errors"
	"github.com/lspdaemon/lspd/internal/kvstore"
	"github.com/lspdaemon/lspd/internal/schema"
)

// Cache is one workspace's backend handle: the C1 KV store plus the
// C2 relational database opened alongside it.
type Cache struct {
	RootPath string
	Backend  kvstore.Backend
	DB       *sql.DB
}

// Router owns every workspace's Cache, keyed by canonicalized root
// path, with per-key locking so concurrent EnsureWorkspaceCache calls
// for the same path converge on one backend.
type Router struct {
	baseDir string

	mu     sync.Mutex
	caches map[string]*Cache
	locks  map[string]*sync.Mutex
}

// New returns a Router that stores each workspace's backend under its
// own subdirectory of baseDir.
func New(baseDir string) *Router {
	return &Router{
		baseDir: baseDir,
		caches:  make(map[string]*Cache),
		locks:   make(map[string]*sync.Mutex),
	}
}

// workspaceKey derives a filesystem-safe subdirectory name from a
// canonicalized workspace path.
func workspaceKey(canonical string) string {
	sum := xxhash.Sum64String(canonical)
	return hex.EncodeToString([]byte{
		byte(sum >> 56), byte(sum >> 48), byte(sum >> 40), byte(sum >> 32),
		byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum),
	})
}

func (r *Router) lockFor(canonical string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[canonical]
	if !ok {
		l = &sync.Mutex{}
		r.locks[canonical] = l
	}
	return l
}

// GetCache returns the existing Cache for absPath's canonicalized
// form, if one has already been created, without creating it.
func (r *Router) GetCache(absPath string) (*Cache, bool) {
	canonical, err := filepath.Abs(absPath)
	if err != nil {
		canonical = absPath
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[canonical]
	return c, ok
}

// EnsureWorkspaceCache returns absPath's Cache, creating it (and its
// parent directory, and bootstrapping its SQL schema) if this is the
// first access. Concurrent callers for the same path converge on one
// Cache.
func (r *Router) EnsureWorkspaceCache(ctx context.Context, absPath string) (*Cache, error) {
	canonical, err := filepath.Abs(absPath)
	if err != nil {
		return nil, lspderrors.NewConfigError("path", absPath, err)
	}

	if c, ok := r.GetCache(canonical); ok {
		return c, nil
	}

	lock := r.lockFor(canonical)
	lock.Lock()
	defer lock.Unlock()

	if c, ok := r.GetCache(canonical); ok {
		return c, nil
	}

	dir := filepath.Join(r.baseDir, workspaceKey(canonical))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, lspderrors.NewStorageConfigurationError(dir, err)
	}

	backend, err := kvstore.Open(kvstore.Config{Path: filepath.Join(dir, "kv")})
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "meta.db")
	if err := schema.Bootstrap(ctx, dbPath); err != nil {
		_ = backend.Close()
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = backend.Close()
		return nil, lspderrors.NewStorageConfigurationError(dbPath, err)
	}

	cache := &Cache{RootPath: canonical, Backend: backend, DB: db}

	r.mu.Lock()
	r.caches[canonical] = cache
	r.mu.Unlock()
	return cache, nil
}

// Close releases every workspace's backend and database handle.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, c := range r.caches {
		if err := c.Backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
