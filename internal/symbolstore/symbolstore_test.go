package symbolstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lspdaemon/lspd/internal/schema"
	"github.com/lspdaemon/lspd/internal/types"
	"github.com/lspdaemon/lspd/internal/uidgen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.db")
	require.NoError(t, schema.Bootstrap(context.Background(), path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func sampleSymbol(uid, name string) types.Symbol {
	return types.Symbol{
		UID:                uid,
		FilePath:           "main.go",
		Language:           "go",
		Name:               name,
		FullyQualifiedName: "pkg." + name,
		Kind:               types.SymbolKindFunction,
		Visibility:         types.VisibilityPublic,
		DefRange:           types.Range{Start: types.Position{Line: 1}, End: types.Position{Line: 2}},
		IsDefinition:       true,
	}
}

func TestStoreSymbols_UpsertByUID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sym := sampleSymbol("go::pkg.Foo#()", "Foo")
	require.NoError(t, s.StoreSymbols(ctx, "ws1", []types.Symbol{sym}))

	sym.Signature = "func Foo()"
	require.NoError(t, s.StoreSymbols(ctx, "ws1", []types.Symbol{sym}))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols WHERE uid=?", sym.UID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStoreSymbols_RejectsInvalidSymbol(t *testing.T) {
	s := newTestStore(t)
	bad := sampleSymbol("uid1", "")
	err := s.StoreSymbols(context.Background(), "ws1", []types.Symbol{bad})
	assert.Error(t, err)
}

func TestCreateNoneEdges_YieldsEmptyNotNilResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	uid := "go::pkg.Lonely#()"

	require.NoError(t, s.CreateNoneEdges(ctx, uid))

	defs, err := s.GetDefinitionsForSymbol(ctx, "ws1", uid)
	require.NoError(t, err)
	assert.Empty(t, defs)

	hier, err := s.GetCallHierarchyForSymbol(ctx, "ws1", uid)
	require.NoError(t, err)
	require.NotNil(t, hier)
	assert.Empty(t, hier.Incoming)
	assert.Empty(t, hier.Outgoing)
}

func TestGetCallHierarchyForSymbol_UnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)
	hier, err := s.GetCallHierarchyForSymbol(context.Background(), "ws1", "never-queried")
	require.NoError(t, err)
	assert.Nil(t, hier)
}

func TestStoreEdgesAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	caller := sampleSymbol("go::pkg.Caller#()", "Caller")
	callee := sampleSymbol("go::pkg.Callee#()", "Callee")
	require.NoError(t, s.StoreSymbols(ctx, "ws1", []types.Symbol{caller, callee}))

	edges := []types.Edge{
		{SourceUID: caller.UID, TargetUID: callee.UID, Relation: types.RelationCalls, Confidence: 1},
		{SourceUID: callee.UID, TargetUID: caller.UID, Relation: types.RelationCalledBy, Confidence: 1},
	}
	require.NoError(t, s.StoreEdges(ctx, edges))

	hier, err := s.GetCallHierarchyForSymbol(ctx, "ws1", caller.UID)
	require.NoError(t, err)
	require.NotNil(t, hier)
	require.Len(t, hier.Outgoing, 1)
	assert.Equal(t, callee.FilePath, hier.Outgoing[0].FilePath)
}

func TestBatchConvert_CapsReportedErrors(t *testing.T) {
	gen := uidgen.New()
	raw := make([]RawSymbol, 0, 30)
	for i := 0; i < 30; i++ {
		raw = append(raw, RawSymbol{Input: uidgen.Input{Name: ""}})
	}
	result := BatchConvert(gen, raw)
	assert.Equal(t, 30, result.ErrorCount)
	assert.Len(t, result.FirstNErrors, maxReportedErrors)
	assert.Empty(t, result.Symbols)
}

func TestBatchConvert_SuccessPath(t *testing.T) {
	gen := uidgen.New()
	raw := []RawSymbol{
		{
			Input: uidgen.Input{
				Name: "Foo", Language: "go", Kind: types.SymbolKindFunction,
				FullyQualifiedName: "pkg.Foo", FilePath: "main.go",
			},
			Visibility: types.VisibilityPublic,
			DefRange:   types.Range{Start: types.Position{Line: 1}, End: types.Position{Line: 2}},
		},
	}
	result := BatchConvert(gen, raw)
	require.Len(t, result.Symbols, 1)
	assert.Zero(t, result.ErrorCount)
	assert.GreaterOrEqual(t, result.ElapsedMillis, int64(1))
}
