// Package symbolstore implements the symbol & edge store (spec §4.5,
// component C5): upsert by UID/edge-triple, definition/reference/
// implementation/call-hierarchy lookups, and negative-result sentinel
// edges, on top of the C2 relational schema.
package symbolstore

import (
	"context"
	"database/sql"

	lspderrors "github.com/lspdaemon/lspd/internal/errors"
	"github.com/lspdaemon/lspd/internal/types"
)

// Store is the symbol & edge store of spec §4.5.
type Store struct {
	db *sql.DB
}

// New wraps an already-bootstrapped (see internal/schema) database
// handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// StoreSymbols upserts every symbol by UID. Each symbol is validated
// with Symbol.Validate before being written; the first validation
// error aborts the whole call so the caller can decide whether to
// retry without the offending record.
func (s *Store) StoreSymbols(ctx context.Context, workspaceID string, symbols []types.Symbol) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lspderrors.NewOperationFailedError("begin", "store_symbols", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols (
			uid, workspace_id, file_path, language, name, fully_qualified_name,
			kind, visibility, start_line, start_char, end_line, end_char,
			is_definition, signature, documentation, metadata
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(uid) DO UPDATE SET
			file_path=excluded.file_path, language=excluded.language,
			name=excluded.name, fully_qualified_name=excluded.fully_qualified_name,
			kind=excluded.kind, visibility=excluded.visibility,
			start_line=excluded.start_line, start_char=excluded.start_char,
			end_line=excluded.end_line, end_char=excluded.end_char,
			is_definition=excluded.is_definition, signature=excluded.signature,
			documentation=excluded.documentation, metadata=excluded.metadata
	`)
	if err != nil {
		return lspderrors.NewOperationFailedError("prepare", "store_symbols", err)
	}
	defer stmt.Close()

	for _, sym := range symbols {
		if err := sym.Validate(); err != nil {
			return err
		}
		_, err := stmt.ExecContext(ctx,
			sym.UID, workspaceID, sym.FilePath, sym.Language, sym.Name, sym.FullyQualifiedName,
			int(sym.Kind), string(sym.Visibility),
			sym.DefRange.Start.Line, sym.DefRange.Start.Character,
			sym.DefRange.End.Line, sym.DefRange.End.Character,
			sym.IsDefinition, sym.Signature, sym.Documentation, sym.Metadata,
		)
		if err != nil {
			return lspderrors.NewOperationFailedError("upsert_symbol", sym.UID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return lspderrors.NewOperationFailedError("commit", "store_symbols", err)
	}
	return nil
}

// StoreEdges upserts every edge by (source_uid, target_uid, relation).
func (s *Store) StoreEdges(ctx context.Context, edges []types.Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lspderrors.NewOperationFailedError("begin", "store_edges", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO call_graph (source_uid, target_uid, relation, confidence)
		VALUES (?,?,?,?)
		ON CONFLICT(source_uid, target_uid, relation) DO UPDATE SET
			confidence=excluded.confidence
	`)
	if err != nil {
		return lspderrors.NewOperationFailedError("prepare", "store_edges", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.SourceUID, e.TargetUID, string(e.Relation), e.Confidence); err != nil {
			return lspderrors.NewOperationFailedError("upsert_edge", e.SourceUID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return lspderrors.NewOperationFailedError("commit", "store_edges", err)
	}
	return nil
}

// CreateNoneEdges writes a sentinel edge for every relation kind for
// uid, recording "we looked and found nothing" so future lookups
// distinguish known-empty from unknown.
func (s *Store) CreateNoneEdges(ctx context.Context, uid string) error {
	return s.StoreEdges(ctx, types.NoneEdges(uid))
}

func (s *Store) targetsFor(ctx context.Context, uid string, relation types.Relation) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_uid FROM call_graph WHERE source_uid = ? AND relation = ?`, uid, string(relation))
	if err != nil {
		return nil, lspderrors.NewOperationFailedError("query", string(relation), err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, lspderrors.NewOperationFailedError("scan", string(relation), err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *Store) locationsForUIDs(ctx context.Context, workspaceID string, uids []string) ([]types.Location, error) {
	var locs []types.Location
	for _, uid := range uids {
		if types.IsSentinelUID(uid) {
			continue
		}
		row := s.db.QueryRowContext(ctx, `
			SELECT file_path, start_line, start_char, end_line, end_char
			FROM symbols WHERE uid = ? AND workspace_id = ?`, uid, workspaceID)
		var loc types.Location
		err := row.Scan(&loc.FilePath, &loc.Range.Start.Line, &loc.Range.Start.Character,
			&loc.Range.End.Line, &loc.Range.End.Character)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, lspderrors.NewOperationFailedError("scan", uid, err)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

// GetDefinitionsForSymbol returns every known definition location for
// uid, or an empty slice if only the sentinel "none" edge is present.
func (s *Store) GetDefinitionsForSymbol(ctx context.Context, workspaceID, uid string) ([]types.Location, error) {
	targets, err := s.targetsFor(ctx, uid, types.RelationDefines)
	if err != nil {
		return nil, err
	}
	return s.locationsForUIDs(ctx, workspaceID, targets)
}

// GetReferencesForSymbol returns every known reference location for
// uid. includeDeclaration additionally includes uid's own definition
// sites.
func (s *Store) GetReferencesForSymbol(ctx context.Context, workspaceID, uid string, includeDeclaration bool) ([]types.Location, error) {
	targets, err := s.targetsFor(ctx, uid, types.RelationReferences)
	if err != nil {
		return nil, err
	}
	locs, err := s.locationsForUIDs(ctx, workspaceID, targets)
	if err != nil {
		return nil, err
	}
	if includeDeclaration {
		defs, err := s.GetDefinitionsForSymbol(ctx, workspaceID, uid)
		if err != nil {
			return nil, err
		}
		locs = append(locs, defs...)
	}
	return locs, nil
}

// GetImplementationsForSymbol returns every known implementation
// location for uid.
func (s *Store) GetImplementationsForSymbol(ctx context.Context, workspaceID, uid string) ([]types.Location, error) {
	targets, err := s.targetsFor(ctx, uid, types.RelationImplements)
	if err != nil {
		return nil, err
	}
	return s.locationsForUIDs(ctx, workspaceID, targets)
}

// GetCallHierarchyForSymbol returns uid's incoming and outgoing call
// edges. A nil result means "unknown, never queried"; a non-nil
// result with empty Incoming/Outgoing means "queried, confirmed
// empty".
func (s *Store) GetCallHierarchyForSymbol(ctx context.Context, workspaceID, uid string) (*types.CallHierarchy, error) {
	callers, err := s.targetsFor(ctx, uid, types.RelationCalledBy)
	if err != nil {
		return nil, err
	}
	callees, err := s.targetsFor(ctx, uid, types.RelationCalls)
	if err != nil {
		return nil, err
	}
	if len(callers) == 0 && len(callees) == 0 {
		return nil, nil
	}

	incoming, err := s.locationsForUIDs(ctx, workspaceID, callers)
	if err != nil {
		return nil, err
	}
	outgoing, err := s.locationsForUIDs(ctx, workspaceID, callees)
	if err != nil {
		return nil, err
	}
	return &types.CallHierarchy{Incoming: incoming, Outgoing: outgoing}, nil
}
