package dispatcher

import (
	"context"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/lspdaemon/lspd/internal/lsppool"
)

// callHierarchyItem and the incoming/outgoing call wrappers mirror LSP
// 3.16's textDocument/prepareCallHierarchy family, which predates
// sourcegraph/go-lsp's vendored protocol subset; the dispatcher that
// needs it defines its own minimal wire shapes rather than carrying a
// second protocol library.
type callHierarchyItem struct {
	Name     string          `json:"name"`
	URI      lsp.DocumentURI `json:"uri"`
	Range    lsp.Range       `json:"range"`
	SelRange lsp.Range       `json:"selectionRange"`
}

type callHierarchyPrepareParams struct {
	lsp.TextDocumentPositionParams
}

type callHierarchyIncomingCall struct {
	From       callHierarchyItem `json:"from"`
	FromRanges []lsp.Range       `json:"fromRanges"`
}

type callHierarchyOutgoingCall struct {
	To         callHierarchyItem `json:"to"`
	FromRanges []lsp.Range       `json:"fromRanges"`
}

type callHierarchyIncomingParams struct {
	Item callHierarchyItem `json:"item"`
}

type callHierarchyOutgoingParams struct {
	Item callHierarchyItem `json:"item"`
}

func positionParams(uri lsp.DocumentURI, line, column int) lsp.TextDocumentPositionParams {
	return lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		Position:     lsp.Position{Line: line, Character: column},
	}
}

func callDefinition(ctx context.Context, srv *lsppool.Server, uri lsp.DocumentURI, line, column int) ([]lsp.Location, error) {
	var locs []lsp.Location
	err := srv.Call(ctx, "textDocument/definition", positionParams(uri, line, column), &locs)
	return locs, err
}

func callReferences(ctx context.Context, srv *lsppool.Server, uri lsp.DocumentURI, line, column int, includeDecl bool) ([]lsp.Location, error) {
	params := lsp.ReferenceParams{
		TextDocumentPositionParams: positionParams(uri, line, column),
		Context:                    lsp.ReferenceContext{IncludeDeclaration: includeDecl},
	}
	var locs []lsp.Location
	err := srv.Call(ctx, "textDocument/references", params, &locs)
	return locs, err
}

func callHover(ctx context.Context, srv *lsppool.Server, uri lsp.DocumentURI, line, column int) (*lsp.Hover, error) {
	var hover lsp.Hover
	if err := srv.Call(ctx, "textDocument/hover", positionParams(uri, line, column), &hover); err != nil {
		return nil, err
	}
	return &hover, nil
}

func callPrepareCallHierarchy(ctx context.Context, srv *lsppool.Server, uri lsp.DocumentURI, line, column int) ([]callHierarchyItem, error) {
	var items []callHierarchyItem
	params := callHierarchyPrepareParams{TextDocumentPositionParams: positionParams(uri, line, column)}
	err := srv.Call(ctx, "textDocument/prepareCallHierarchy", params, &items)
	return items, err
}

func callIncomingCalls(ctx context.Context, srv *lsppool.Server, item callHierarchyItem) ([]callHierarchyIncomingCall, error) {
	var calls []callHierarchyIncomingCall
	err := srv.Call(ctx, "callHierarchy/incomingCalls", callHierarchyIncomingParams{Item: item}, &calls)
	return calls, err
}

func callOutgoingCalls(ctx context.Context, srv *lsppool.Server, item callHierarchyItem) ([]callHierarchyOutgoingCall, error) {
	var calls []callHierarchyOutgoingCall
	err := srv.Call(ctx, "callHierarchy/outgoingCalls", callHierarchyOutgoingParams{Item: item}, &calls)
	return calls, err
}

func callCompletion(ctx context.Context, srv *lsppool.Server, uri lsp.DocumentURI, line, column int) (*lsp.CompletionList, error) {
	var list lsp.CompletionList
	if err := srv.Call(ctx, "textDocument/completion", lsp.CompletionParams{TextDocumentPositionParams: positionParams(uri, line, column)}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}
