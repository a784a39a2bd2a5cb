// Package uidgen produces deterministic, collision-resistant symbol
// UIDs from a symbol's observable attributes (spec §4.4, component
// C4). Rules are tried in priority order; the first applicable one
// wins. Collisions on the resulting base UID are disambiguated with
// an appended "#N" suffix, up to 1000 attempts.
package uidgen

import (
	"fmt"
	"strings"
	"sync"

	lspderrors "github.com/lspdaemon/lspd/internal/errors"
	"github.com/lspdaemon/lspd/internal/types"
)

const maxCollisionAttempts = 1000

// LanguageRules holds per-language settings referenced by spec §4.4:
// the scope separator, an overload flag and a case-sensitivity flag.
// Generate consults only ScopeSeparator. OverloadsParticipate and
// CaseSensitive do not affect the UID: the global rule always appends
// the normalized signature, and names are never case-folded.
type LanguageRules struct {
	ScopeSeparator       string
	OverloadsParticipate bool
	CaseSensitive        bool
}

// DefaultLanguageRules is used for any language without an explicit
// override.
var DefaultLanguageRules = LanguageRules{
	ScopeSeparator:       "::",
	OverloadsParticipate: true,
	CaseSensitive:        true,
}

var knownLanguageRules = map[string]LanguageRules{
	"go":         {ScopeSeparator: ".", OverloadsParticipate: false, CaseSensitive: true},
	"python":     {ScopeSeparator: ".", OverloadsParticipate: false, CaseSensitive: true},
	"rust":       {ScopeSeparator: "::", OverloadsParticipate: true, CaseSensitive: true},
	"cpp":        {ScopeSeparator: "::", OverloadsParticipate: true, CaseSensitive: true},
	"c":          {ScopeSeparator: "::", OverloadsParticipate: false, CaseSensitive: true},
	"java":       {ScopeSeparator: ".", OverloadsParticipate: true, CaseSensitive: true},
	"typescript": {ScopeSeparator: ".", OverloadsParticipate: false, CaseSensitive: true},
	"javascript": {ScopeSeparator: ".", OverloadsParticipate: false, CaseSensitive: true},
}

// RulesFor returns the registered rules for language, or
// DefaultLanguageRules if none are registered.
func RulesFor(language string) LanguageRules {
	if r, ok := knownLanguageRules[language]; ok {
		return r
	}
	return DefaultLanguageRules
}

// Input is the set of observable attributes the generator draws its
// decision from.
type Input struct {
	AuthoritativeUID string // e.g. a Clang USR, used verbatim if non-empty
	Language         string
	Name             string
	Kind             types.SymbolKind
	FullyQualifiedName string
	Signature        string
	OwnerTypeFQN     string // non-empty if this symbol is a type member
	ScopeStack       []string
	IsScoped         bool // parameter or local variable
	FilePath         string
	Line             int
	Character        int
}

func isAnonymous(in Input) bool {
	if in.Kind == types.SymbolKindAnonymous {
		return true
	}
	name := in.Name
	return strings.HasPrefix(name, "lambda") ||
		strings.HasPrefix(name, "anon") ||
		strings.HasPrefix(name, "$") ||
		strings.Contains(name, "@")
}

// Generator tracks emitted UIDs and per-base collision counts across
// a batch; Reset clears this state at batch boundaries.
type Generator struct {
	mu         sync.Mutex
	emitted    map[string]bool
	collisions map[string]int
}

// New returns an empty Generator.
func New() *Generator {
	return &Generator{
		emitted:    make(map[string]bool),
		collisions: make(map[string]int),
	}
}

// Reset clears emitted-UID and collision-counter state.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.emitted = make(map[string]bool)
	g.collisions = make(map[string]int)
}

// CollisionStats returns a copy of the per-base collision counts
// accumulated so far, for monitoring.
func (g *Generator) CollisionStats() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int, len(g.collisions))
	for k, v := range g.collisions {
		out[k] = v
	}
	return out
}

// Generate produces a UID for in, applying §4.4's priority rules and
// then disambiguating collisions against the run-level emitted set.
func (g *Generator) Generate(in Input) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", lspderrors.NewNormalizationError(in.Name, "symbol name is empty after trimming")
	}

	base := baseUID(in, name)

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.emitted[base] {
		g.emitted[base] = true
		return base, nil
	}

	for attempt := 1; attempt <= maxCollisionAttempts; attempt++ {
		candidate := fmt.Sprintf("%s#%d", base, attempt)
		if !g.emitted[candidate] {
			g.emitted[candidate] = true
			g.collisions[base] = attempt
			return candidate, nil
		}
	}
	return "", lspderrors.NewNormalizationError(name, fmt.Sprintf("more than %d UID collisions for base %q", maxCollisionAttempts, base))
}

// baseUID implements the priority-ordered rules of spec §4.4, before
// collision disambiguation.
func baseUID(in Input, name string) string {
	if in.AuthoritativeUID != "" {
		return in.AuthoritativeUID
	}

	path := normalizePath(in.FilePath)

	if isAnonymous(in) {
		rules := RulesFor(in.Language)
		scope := strings.Join(in.ScopeStack, rules.ScopeSeparator)
		return fmt.Sprintf("%s::%s@%s:%d:%d", scope, in.Kind.String(), path, in.Line, in.Character)
	}

	if in.IsScoped {
		rules := RulesFor(in.Language)
		scope := strings.Join(in.ScopeStack, rules.ScopeSeparator)
		if scope == "" {
			return fmt.Sprintf("%s:%s:%d:%d", path, name, in.Line, in.Character)
		}
		return fmt.Sprintf("%s%s%s:%s:%d:%d", scope, rules.ScopeSeparator, name, path, in.Line, in.Character)
	}

	if in.OwnerTypeFQN != "" {
		rules := RulesFor(in.Language)
		return fmt.Sprintf("%s%s%s", in.OwnerTypeFQN, rules.ScopeSeparator, name)
	}

	fqn := in.FullyQualifiedName
	if fqn == "" {
		fqn = name
	}
	sig := normalizeSignature(in.Signature)
	return fmt.Sprintf("%s::%s#%s", in.Language, fqn, sig)
}

func normalizePath(p string) string {
	return strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
}

// normalizeSignature collapses whitespace and strips parameter names,
// keeping only the comma-separated type list, per spec §4.4. A
// signature of the form "name(a int, b string) string" normalizes to
// "(int, string) string"; a signature with no parens is returned with
// whitespace collapsed only.
func normalizeSignature(sig string) string {
	fields := strings.Fields(sig)
	collapsed := strings.Join(fields, " ")

	open := strings.Index(collapsed, "(")
	shut := strings.LastIndex(collapsed, ")")
	if open < 0 || shut < open {
		return collapsed
	}

	params := collapsed[open+1 : shut]
	suffix := collapsed[shut+1:]

	var paramTypes []string
	for _, part := range strings.Split(params, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fs := strings.Fields(part)
		if len(fs) > 1 {
			paramTypes = append(paramTypes, fs[len(fs)-1])
		} else {
			paramTypes = append(paramTypes, fs[0])
		}
	}
	return fmt.Sprintf("(%s)%s", strings.Join(paramTypes, ", "), suffix)
}
