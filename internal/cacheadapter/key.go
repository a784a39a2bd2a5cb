// Package cacheadapter implements the storage-independent cache
// surface (spec §4.3, component C3) the dispatcher uses to ask "did
// we already compute this?", on top of a C1 Backend.
package cacheadapter

import (
	"strings"

	lspderrors "github.com/lspdaemon/lspd/internal/errors"
)

// MethodToken enumerates the LSP operations the cache can key on.
type MethodToken string

const (
	MethodDefinition           MethodToken = "textDocument_definition"
	MethodReferences           MethodToken = "textDocument_references"
	MethodHover                MethodToken = "textDocument_hover"
	MethodPrepareCallHierarchy MethodToken = "textDocument_prepareCallHierarchy"
	MethodImplementation       MethodToken = "textDocument_implementation"
)

var validMethodTokens = map[MethodToken]bool{
	MethodDefinition:           true,
	MethodReferences:           true,
	MethodHover:                true,
	MethodPrepareCallHierarchy: true,
	MethodImplementation:       true,
}

// Key is the parsed form of a canonical storage key:
// workspace_id:method_token:relative_path:content_hash.
type Key struct {
	WorkspaceID string
	Method      MethodToken
	RelPath     string
	ContentHash string
}

// Format renders k back to its canonical string form.
func (k Key) Format() string {
	return strings.Join([]string{k.WorkspaceID, string(k.Method), k.RelPath, k.ContentHash}, ":")
}

// ParseKey converts a canonical storage key string to its structured
// form, rejecting keys with fewer than four colon-separated parts or
// an unrecognized method token. The relative path itself may contain
// colons, so only the first, second and last separators are
// significant; everything between the method token and the content
// hash belongs to the path.
func ParseKey(raw string) (Key, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 4 {
		return Key{}, lspderrors.NewDecodeError("storage key has fewer than 4 colon-separated parts: " + raw)
	}
	method := MethodToken(parts[1])
	if !validMethodTokens[method] {
		return Key{}, lspderrors.NewDecodeError("unknown method token: " + parts[1])
	}
	relPath := strings.Join(parts[2:len(parts)-1], ":")
	return Key{
		WorkspaceID: parts[0],
		Method:      method,
		RelPath:     relPath,
		ContentHash: parts[len(parts)-1],
	}, nil
}
