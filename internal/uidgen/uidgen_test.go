package uidgen

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lspdaemon/lspd/internal/types"
)

func TestGenerate_AuthoritativeUIDPassthrough(t *testing.T) {
	g := New()
	uid, err := g.Generate(Input{AuthoritativeUID: "USR:c:@F@main", Name: "main"})
	require.NoError(t, err)
	assert.Equal(t, "USR:c:@F@main", uid)
}

func TestGenerate_AnonymousSymbol(t *testing.T) {
	g := New()
	uid, err := g.Generate(Input{
		Name:       "lambda_1",
		Kind:       types.SymbolKindAnonymous,
		Language:   "rust",
		ScopeStack: []string{"accounting", "billing"},
		FilePath:   "src/billing.rs",
		Line:       10,
		Character:  4,
	})
	require.NoError(t, err)
	assert.Equal(t, "accounting::billing::anonymous@src/billing.rs:10:4", uid)
}

func TestGenerate_ScopedLocalVariable(t *testing.T) {
	g := New()
	uid, err := g.Generate(Input{
		Name:       "count",
		Kind:       types.SymbolKindVariable,
		Language:   "go",
		IsScoped:   true,
		ScopeStack: []string{"processBatch"},
		FilePath:   "main.go",
		Line:       20,
		Character:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, "processBatch.count:main.go:20:2", uid)
}

func TestGenerate_TypeMember(t *testing.T) {
	g := New()
	uid, err := g.Generate(Input{
		Name:         "Parse",
		Kind:         types.SymbolKindMethod,
		Language:     "go",
		OwnerTypeFQN: "pkg.Parser",
	})
	require.NoError(t, err)
	assert.Equal(t, "pkg.Parser.Parse", uid)
}

func TestGenerate_Global(t *testing.T) {
	g := New()
	uid, err := g.Generate(Input{
		Name:               "Parse",
		Kind:               types.SymbolKindFunction,
		Language:           "go",
		FullyQualifiedName: "pkg.Parse",
		Signature:          "func Parse(s string, strict bool) error",
	})
	require.NoError(t, err)
	assert.Equal(t, "go::pkg.Parse#(string, bool) error", uid)
}

func TestGenerate_EmptyNameRejected(t *testing.T) {
	g := New()
	_, err := g.Generate(Input{Name: "   "})
	assert.Error(t, err)
}

func TestGenerate_CollisionDisambiguation(t *testing.T) {
	g := New()
	in := Input{Name: "Parse", Kind: types.SymbolKindFunction, Language: "go", FullyQualifiedName: "pkg.Parse"}

	first, err := g.Generate(in)
	require.NoError(t, err)
	second, err := g.Generate(in)
	require.NoError(t, err)
	third, err := g.Generate(in)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, first+"#1", second)
	assert.Equal(t, first+"#2", third)

	stats := g.CollisionStats()
	assert.Equal(t, 2, stats[first])
}

func TestGenerate_TooManyCollisionsFails(t *testing.T) {
	g := New()
	in := Input{Name: "X", Kind: types.SymbolKindFunction, Language: "go", FullyQualifiedName: "pkg.X"}

	for i := 0; i < maxCollisionAttempts+2; i++ {
		if _, err := g.Generate(in); err != nil {
			assert.Equal(t, maxCollisionAttempts+1, i)
			return
		}
	}
	t.Fatal("expected collision exhaustion error")
}

func TestReset_ClearsState(t *testing.T) {
	g := New()
	in := Input{Name: "Parse", Kind: types.SymbolKindFunction, Language: "go", FullyQualifiedName: "pkg.Parse"}

	first, err := g.Generate(in)
	require.NoError(t, err)
	g.Reset()
	again, err := g.Generate(in)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Empty(t, g.CollisionStats())
}

func TestRulesFor_KnownAndUnknownLanguage(t *testing.T) {
	assert.Equal(t, ".", RulesFor("go").ScopeSeparator)
	assert.Equal(t, DefaultLanguageRules, RulesFor("cobol-dialect-nobody-uses"))
}

func TestNormalizePath_BackslashesToForwardSlashes(t *testing.T) {
	assert.Equal(t, "a/b/c.go", normalizePath(`a\b\c.go`))
}

func TestNormalizeSignature_CollapsesWhitespaceAndStripsNames(t *testing.T) {
	got := normalizeSignature("func Parse(s   string, strict bool) error")
	assert.Equal(t, "(string, bool) error", got)
}

func ExampleGenerator_Generate() {
	g := New()
	uid, _ := g.Generate(Input{
		Name: "Parse", Kind: types.SymbolKindFunction, Language: "go",
		FullyQualifiedName: "pkg.Parse", Signature: "func Parse(s string) error",
	})
	fmt.Println(uid)
	// Output: go::pkg.Parse#(string) error
}
