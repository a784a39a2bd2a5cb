package schema

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrap_Memory(t *testing.T) {
	err := Bootstrap(context.Background(), ":memory:")
	require.NoError(t, err)
}

func TestBootstrap_FileCreatesSentinelTable(t *testing.T) {
	Reset()
	path := filepath.Join(t.TempDir(), "cache.db")

	require.NoError(t, Bootstrap(context.Background(), path))

	ok, err := hasSentinel(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBootstrap_IdempotentReentry(t *testing.T) {
	Reset()
	path := filepath.Join(t.TempDir(), "cache.db")

	require.NoError(t, Bootstrap(context.Background(), path))
	require.NoError(t, Bootstrap(context.Background(), path))
}

func TestBootstrap_ConcurrentCallersConverge(t *testing.T) {
	Reset()
	path := filepath.Join(t.TempDir(), "cache.db")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- Bootstrap(context.Background(), path)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestBootstrap_MissingSentinelTriggersReexecution(t *testing.T) {
	Reset()
	path := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, Bootstrap(context.Background(), path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("DROP TABLE " + sentinelTable)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, Bootstrap(context.Background(), path))

	ok, err := hasSentinel(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, ok)
}
