package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelUID_NeverCollidesWithRealUID(t *testing.T) {
	for _, rel := range AllRelations {
		sentinel := SentinelUID(rel)
		assert.True(t, IsSentinelUID(sentinel))
	}
	// Real UIDs produced by internal/uidgen never start with "__".
	assert.False(t, IsSentinelUID("go::pkg.Foo#()"))
	assert.False(t, IsSentinelUID("concurrent_test:TestSymbol:10:5"))
}

func TestNoneEdges(t *testing.T) {
	edges := NoneEdges("concurrent_test:TestSymbol:10:5")
	require.Len(t, edges, len(AllRelations))

	seen := make(map[Relation]bool)
	for _, e := range edges {
		assert.Equal(t, "concurrent_test:TestSymbol:10:5", e.SourceUID)
		assert.True(t, e.IsSentinel())
		seen[e.Relation] = true
	}
	for _, rel := range AllRelations {
		assert.True(t, seen[rel], "missing none-edge for relation %s", rel)
	}
}

func TestEdge_IsSentinelFalseForRealEdge(t *testing.T) {
	e := Edge{SourceUID: "a", TargetUID: "b", Relation: RelationCalls, Confidence: 0.9}
	assert.False(t, e.IsSentinel())
}
