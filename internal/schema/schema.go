// Package schema bootstraps the relational side of the cache store
// (spec §4.2, component C2): workspaces, files, symbols, call_graph
// and lsp_cache tables in an embedded transactional SQL database,
// distinct from C1's KV store, for the indexed joins and prefix
// filters C5's graph queries need.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	lspderrors "github.com/lspdaemon/lspd/internal/errors"
)

// sentinelTable exists only as proof a path has already been
// bootstrapped; its presence is the ground truth, the process-local
// set is an optimization on top of it.
const sentinelTable = "schema_meta"

const ddl = `
CREATE TABLE IF NOT EXISTS schema_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workspaces (
	workspace_id TEXT PRIMARY KEY,
	root_path TEXT NOT NULL UNIQUE,
	created_at INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS files (
	file_id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	relative_path TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	branch TEXT,
	commit_hash TEXT,
	indexed_at INTEGER DEFAULT (strftime('%s', 'now')),

	FOREIGN KEY(workspace_id) REFERENCES workspaces(workspace_id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_files_identity
	ON files(workspace_id, relative_path, content_hash);

CREATE TABLE IF NOT EXISTS symbols (
	uid TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	language TEXT NOT NULL,
	name TEXT NOT NULL,
	fully_qualified_name TEXT NOT NULL,
	kind INTEGER NOT NULL,
	visibility TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	start_char INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	end_char INTEGER NOT NULL,
	is_definition INTEGER NOT NULL DEFAULT 1,
	signature TEXT,
	documentation TEXT,
	metadata BLOB,

	FOREIGN KEY(workspace_id) REFERENCES workspaces(workspace_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(workspace_id, name);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(workspace_id, file_path);

CREATE TABLE IF NOT EXISTS call_graph (
	source_uid TEXT NOT NULL,
	target_uid TEXT NOT NULL,
	relation TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 1.0,

	PRIMARY KEY(source_uid, target_uid, relation)
);

CREATE INDEX IF NOT EXISTS idx_call_graph_source ON call_graph(source_uid, relation);
CREATE INDEX IF NOT EXISTS idx_call_graph_target ON call_graph(target_uid, relation);

CREATE TABLE IF NOT EXISTS lsp_cache (
	storage_key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	updated_at INTEGER DEFAULT (strftime('%s', 'now'))
);

INSERT OR IGNORE INTO schema_meta (key, value) VALUES ('bootstrapped', '1');
`

var (
	mu           sync.Mutex
	bootstrapped = map[string]bool{}
)

// Bootstrap executes the DDL batch for path (an absolute file path or
// the literal ":memory:"), converging concurrent callers onto one
// execution per path per process.
func Bootstrap(ctx context.Context, path string) error {
	if path == ":memory:" {
		return bootstrapMemory(ctx)
	}
	return bootstrapFile(ctx, path)
}

// bootstrapMemory executes the DDL unconditionally: every in-memory
// database opened with ":memory:" is process-isolated by definition,
// so there is nothing to converge on.
func bootstrapMemory(ctx context.Context) error {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		return lspderrors.NewStorageConfigurationError(":memory:", err)
	}
	defer db.Close()
	return execDDL(ctx, db)
}

func bootstrapFile(ctx context.Context, path string) error {
	mu.Lock()
	already := bootstrapped[path]
	mu.Unlock()
	if already {
		if ok, err := hasSentinel(ctx, path); err == nil && ok {
			return nil
		}
		mu.Lock()
		delete(bootstrapped, path)
		mu.Unlock()
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return lspderrors.NewStorageConfigurationError(path, err)
	}
	defer lock.Unlock()

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return lspderrors.NewStorageConfigurationError(path, err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	if err := execDDL(ctx, db); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return lspderrors.NewOperationFailedError("checkpoint", path, err)
	}

	mu.Lock()
	bootstrapped[path] = true
	mu.Unlock()
	return nil
}

func execDDL(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return lspderrors.NewOperationFailedError("begin", "schema", err)
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		_ = tx.Rollback()
		return lspderrors.NewOperationFailedError("bootstrap_ddl", "schema", err)
	}
	if err := tx.Commit(); err != nil {
		return lspderrors.NewOperationFailedError("commit", "schema", err)
	}
	return nil
}

func hasSentinel(ctx context.Context, path string) (bool, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var name string
	err = db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", sentinelTable).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Reset clears the process-local bootstrapped-paths set. Test-only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	bootstrapped = map[string]bool{}
}
