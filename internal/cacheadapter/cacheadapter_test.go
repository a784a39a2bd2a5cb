package cacheadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lspdaemon/lspd/internal/kvstore"
)

func TestParseKey_RoundTrip(t *testing.T) {
	k := Key{WorkspaceID: "ws1", Method: MethodDefinition, RelPath: "src/main.go", ContentHash: "abc123"}
	parsed, err := ParseKey(k.Format())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestParseKey_PathWithColons(t *testing.T) {
	k := Key{WorkspaceID: "ws1", Method: MethodReferences, RelPath: "C:/weird/path.go", ContentHash: "deadbeef"}
	parsed, err := ParseKey(k.Format())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestParseKey_TooFewParts(t *testing.T) {
	_, err := ParseKey("ws1:textDocument_definition:onlypath")
	assert.Error(t, err)
}

func TestParseKey_UnknownMethod(t *testing.T) {
	_, err := ParseKey("ws1:not_a_method:path:hash")
	assert.Error(t, err)
}

func TestAdapter_SetGetClear(t *testing.T) {
	ctx := context.Background()
	backend, err := kvstore.Open(kvstore.Config{Temporary: true})
	require.NoError(t, err)
	a := New(backend)

	key := Key{WorkspaceID: "ws1", Method: MethodHover, RelPath: "a.go", ContentHash: "h1"}
	require.NoError(t, a.SetUniversalEntry(ctx, key.Format(), []byte("payload")))

	v, ok, err := a.GetUniversalEntry(ctx, key.Format())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), v)

	n, err := a.ClearUniversalEntriesByPrefix(ctx, "ws1:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = a.GetUniversalEntry(ctx, key.Format())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdapter_StatsAlwaysFreshFromStorage(t *testing.T) {
	ctx := context.Background()
	backend, err := kvstore.Open(kvstore.Config{Temporary: true})
	require.NoError(t, err)
	a := New(backend)

	stats, err := a.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)

	key := Key{WorkspaceID: "ws1", Method: MethodHover, RelPath: "a.go", ContentHash: "h1"}
	require.NoError(t, a.SetUniversalEntry(ctx, key.Format(), []byte("x")))

	stats, err = a.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalEntries)
}

func TestAdapter_HitMissCounters(t *testing.T) {
	ctx := context.Background()
	backend, err := kvstore.Open(kvstore.Config{Temporary: true})
	require.NoError(t, err)
	a := New(backend)

	require.NoError(t, a.UpdateHitMissCounts(ctx, 3, 1))
	stats, err := a.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
}

// TestAdapter_HitMissCountersPersistAcrossInstances proves the counters
// survive a dropped-and-recreated Adapter over the same backend, per
// spec §4.3's "never cache stats in process memory" invariant —
// mirroring original_source/lsp-daemon/src/database_cache_adapter_tests.rs:193-210.
func TestAdapter_HitMissCountersPersistAcrossInstances(t *testing.T) {
	ctx := context.Background()
	backend, err := kvstore.Open(kvstore.Config{Temporary: true})
	require.NoError(t, err)

	first := New(backend)
	require.NoError(t, first.UpdateHitMissCounts(ctx, 2, 1))

	second := New(backend)
	require.NoError(t, second.UpdateHitMissCounts(ctx, 1, 3))

	stats, err := second.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.HitCount)
	assert.Equal(t, int64(4), stats.MissCount)

	stats, err = first.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.HitCount)
	assert.Equal(t, int64(4), stats.MissCount)
}
