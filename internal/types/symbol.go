// Package types holds the data model shared across lspd's components:
// symbols and edges (spec §3), locations, and file-version fingerprints.
package types

import "fmt"

// SymbolKind enumerates the recognized symbol kinds (spec §3).
type SymbolKind int

const (
	SymbolKindUnknown SymbolKind = iota
	SymbolKindFunction
	SymbolKindMethod
	SymbolKindConstructor
	SymbolKindDestructor
	SymbolKindClass
	SymbolKindStruct
	SymbolKindInterface
	SymbolKindTrait
	SymbolKindEnum
	SymbolKindUnion
	SymbolKindVariable
	SymbolKindParameter
	SymbolKindField
	SymbolKindConstant
	SymbolKindNamespace
	SymbolKindModule
	SymbolKindPackage
	SymbolKindMacro
	SymbolKindType
	SymbolKindAlias
	SymbolKindAnonymous
	SymbolKindTest
	SymbolKindImport
	SymbolKindExport
)

var symbolKindStrings = map[SymbolKind]string{
	SymbolKindFunction:    "function",
	SymbolKindMethod:      "method",
	SymbolKindConstructor: "constructor",
	SymbolKindDestructor:  "destructor",
	SymbolKindClass:       "class",
	SymbolKindStruct:      "struct",
	SymbolKindInterface:   "interface",
	SymbolKindTrait:       "trait",
	SymbolKindEnum:        "enum",
	SymbolKindUnion:       "union",
	SymbolKindVariable:    "variable",
	SymbolKindParameter:   "parameter",
	SymbolKindField:       "field",
	SymbolKindConstant:    "constant",
	SymbolKindNamespace:   "namespace",
	SymbolKindModule:      "module",
	SymbolKindPackage:     "package",
	SymbolKindMacro:       "macro",
	SymbolKindType:        "type",
	SymbolKindAlias:       "alias",
	SymbolKindAnonymous:   "anonymous",
	SymbolKindTest:        "test",
	SymbolKindImport:      "import",
	SymbolKindExport:      "export",
}

var symbolKindFromString = func() map[string]SymbolKind {
	m := make(map[string]SymbolKind, len(symbolKindStrings))
	for k, v := range symbolKindStrings {
		m[v] = k
	}
	return m
}()

// String returns the wire/storage representation of the kind.
func (k SymbolKind) String() string {
	if name, ok := symbolKindStrings[k]; ok {
		return name
	}
	return "unknown"
}

// ParseSymbolKind parses a kind string back into a SymbolKind.
func ParseSymbolKind(s string) (SymbolKind, bool) {
	k, ok := symbolKindFromString[s]
	return k, ok
}

// Visibility enumerates symbol access levels (spec §3, optional).
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
	VisibilityInternal  Visibility = "internal"
	VisibilityPackage   Visibility = "package"
	VisibilityExport    Visibility = "export"
)

// Position is a 0-based line/character location within a file.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span within a file.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Valid checks the ordering invariant from spec §3: start_line <=
// end_line, and if equal, start_char <= end_char.
func (r Range) Valid() bool {
	if r.Start.Line > r.End.Line {
		return false
	}
	if r.Start.Line == r.End.Line && r.Start.Character > r.End.Character {
		return false
	}
	return true
}

// Location identifies a range within a specific workspace-relative file.
type Location struct {
	FilePath string `json:"file_path"`
	Range    Range  `json:"range"`
}

const (
	MaxNameLength              = 1000
	MaxFilePathLength          = 4096
	MaxSignatureLength         = 5000
	MaxDocumentationLength     = 50000
	MaxFullyQualifiedNameLen   = 2000
	UnknownFilePathSentinel    = "unknown"
)

// Symbol is a definition record (spec §3).
type Symbol struct {
	UID                 string         `json:"uid"`
	FilePath            string         `json:"file_path"`
	Language            string         `json:"language"`
	Name                string         `json:"name"`
	FullyQualifiedName  string         `json:"fully_qualified_name,omitempty"`
	Kind                SymbolKind     `json:"kind"`
	Visibility          Visibility     `json:"visibility,omitempty"`
	DefRange            Range          `json:"def_range"`
	IsDefinition        bool           `json:"is_definition"`
	Signature           string         `json:"signature,omitempty"`
	Documentation       string         `json:"documentation,omitempty"`
	Metadata            []byte         `json:"metadata,omitempty"`
}

// Validate enforces the invariants of spec §3. It is called by
// internal/symbolstore before any upsert.
func (s *Symbol) Validate() error {
	switch {
	case len(s.Name) == 0:
		return fmt.Errorf("symbol name must not be empty")
	case len(s.Name) > MaxNameLength:
		return fmt.Errorf("symbol name exceeds %d characters", MaxNameLength)
	case len(s.FilePath) == 0:
		return fmt.Errorf("symbol file_path must not be empty")
	case len(s.FilePath) > MaxFilePathLength:
		return fmt.Errorf("symbol file_path exceeds %d characters", MaxFilePathLength)
	case s.FilePath == UnknownFilePathSentinel:
		return fmt.Errorf("symbol file_path must not be the literal %q", UnknownFilePathSentinel)
	case !s.DefRange.Valid():
		return fmt.Errorf("symbol range is not ordered: %+v", s.DefRange)
	case len(s.Signature) > MaxSignatureLength:
		return fmt.Errorf("symbol signature exceeds %d characters", MaxSignatureLength)
	case len(s.Documentation) > MaxDocumentationLength:
		return fmt.Errorf("symbol documentation exceeds %d characters", MaxDocumentationLength)
	case len(s.FullyQualifiedName) > MaxFullyQualifiedNameLen:
		return fmt.Errorf("symbol fully_qualified_name exceeds %d characters", MaxFullyQualifiedNameLen)
	}
	return nil
}
