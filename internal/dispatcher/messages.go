package dispatcher

import "github.com/lspdaemon/lspd/internal/types"

// Request type tags (spec §4.8).
const (
	TypeConnect              = "connect"
	TypeInitializeWorkspace  = "initialize_workspace"
	TypeInitWorkspaces       = "init_workspaces"
	TypeListWorkspaces       = "list_workspaces"
	TypeCallHierarchy        = "call_hierarchy"
	TypeDefinition           = "definition"
	TypeReferences           = "references"
	TypeHover                = "hover"
	TypeCompletion           = "completion"
	TypeStatus               = "status"
	TypeListLanguages        = "list_languages"
	TypeShutdown             = "shutdown"
	TypePing                 = "ping"
	TypeHealthCheck          = "health_check"
	TypeGetLogs              = "get_logs"
	TypeError                = "error"
)

// ConnectRequest identifies the connecting client.
type ConnectRequest struct {
	ClientID string `json:"client_id"`
}

// ConnectResponse acknowledges a Connect.
type ConnectResponse struct {
	ServerVersion string `json:"server_version"`
}

// InitializeWorkspaceRequest asks the dispatcher to resolve (and lazily
// warm) one workspace, optionally pinning the language.
type InitializeWorkspaceRequest struct {
	WorkspaceRoot string `json:"workspace_root"`
	Language      string `json:"language,omitempty"`
}

type InitializeWorkspaceResponse struct {
	WorkspaceRoot string `json:"workspace_root"`
	Language      string `json:"language"`
}

// InitWorkspacesRequest seeds multiple languages for one root.
// Recursive is carried on the wire but the dispatcher does not act on
// it: subdirectories are not searched for nested roots.
type InitWorkspacesRequest struct {
	WorkspaceRoot string   `json:"workspace_root"`
	Languages     []string `json:"languages,omitempty"`
	Recursive     bool     `json:"recursive"`
}

type InitWorkspacesResponse struct {
	Initialized []InitializeWorkspaceResponse `json:"initialized"`
}

type ListWorkspacesRequest struct{}

type ListWorkspacesResponse struct {
	Workspaces []string `json:"workspaces"`
}

// NavigationRequest is the common shape of CallHierarchy, Definition,
// References and Hover requests (spec §4.8 step 1).
type NavigationRequest struct {
	FilePath           string `json:"file_path"`
	Line               int    `json:"line"`
	Column             int    `json:"column"`
	WorkspaceHint      string `json:"workspace_hint,omitempty"`
	IncludeDeclaration bool   `json:"include_declaration,omitempty"`
}

// NavigationResponse carries whichever result shape applies; exactly
// one of these is populated depending on the originating request type.
type NavigationResponse struct {
	Locations     []LocationDTO     `json:"locations,omitempty"`
	CallHierarchy *CallHierarchyDTO `json:"call_hierarchy,omitempty"`
	Hover         *HoverDTO         `json:"hover,omitempty"`
	FileVersion   types.FileVersion `json:"file_version"`
}

type LocationDTO struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	EndLine  int    `json:"end_line"`
	EndCol   int    `json:"end_column"`
}

type CallHierarchyDTO struct {
	Incoming []LocationDTO `json:"incoming"`
	Outgoing []LocationDTO `json:"outgoing"`
}

type HoverDTO struct {
	Contents string `json:"contents"`
}

type CompletionRequest struct {
	FilePath      string `json:"file_path"`
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	WorkspaceHint string `json:"workspace_hint,omitempty"`
}

type CompletionResponse struct {
	Items []string `json:"items"`
}

type StatusRequest struct{}

type StatusResponse struct {
	Healthy        bool             `json:"healthy"`
	HeartbeatAgeMs int64            `json:"heartbeat_age_ms"`
	Workspaces     int              `json:"workspaces"`
	UptimeSeconds  float64          `json:"uptime_seconds"`
	Indexing       IndexingProgress `json:"indexing"`
}

// IndexingProgress mirrors an indexprogress.Snapshot over the wire
// (spec §3). The dispatcher keeps one tracker for its whole lifetime:
// the outcome counters accumulate across every InitWorkspaces call and
// are not reset between calls.
type IndexingProgress struct {
	Total         int64 `json:"total"`
	Success       int64 `json:"success"`
	Failure       int64 `json:"failure"`
	Active        int64 `json:"active"`
	Skipped       int64 `json:"skipped"`
	Symbols       int64 `json:"symbols"`
	ActiveWorkers int64 `json:"active_workers"`
}

type ListLanguagesRequest struct{}

type ListLanguagesResponse struct {
	Available map[string]bool `json:"available"`
}

type ShutdownRequest struct{}

type ShutdownResponse struct {
	Accepted bool `json:"accepted"`
}

type PingRequest struct{}

type PingResponse struct {
	Pong bool `json:"pong"`
}

type HealthCheckRequest struct{}

type HealthCheckResponse struct {
	Healthy bool `json:"healthy"`
}

type GetLogsRequest struct {
	Lines int `json:"lines"`
}

type GetLogsResponse struct {
	Lines []string `json:"lines"`
}
