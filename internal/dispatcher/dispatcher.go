package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	lsp "github.com/sourcegraph/go-lsp"
	"golang.org/x/sync/singleflight"

	"github.com/lspdaemon/lspd/internal/cacheadapter"
	"github.com/lspdaemon/lspd/internal/debug"
	lspderrors "github.com/lspdaemon/lspd/internal/errors"
	"github.com/lspdaemon/lspd/internal/gitinfo"
	"github.com/lspdaemon/lspd/internal/indexprogress"
	"github.com/lspdaemon/lspd/internal/lspregistry"
	"github.com/lspdaemon/lspd/internal/lsppool"
	"github.com/lspdaemon/lspd/internal/symbolstore"
	"github.com/lspdaemon/lspd/internal/types"
	"github.com/lspdaemon/lspd/internal/uidgen"
	"github.com/lspdaemon/lspd/internal/workspace"
)

// ServerVersion is reported in ConnectResponse and logs.
const ServerVersion = "lspd-0"

// Dispatcher owns the client-facing socket, the per-workspace cache
// adapters, and the glue between C3/C5/C6/C7/C8 that answers
// navigation requests (spec §4.8 step 1-8).
type Dispatcher struct {
	registry   *lspregistry.Registry
	workspaces *workspace.Router
	pool       *lsppool.Pool

	startTime time.Time
	heartbeat int64 // unix nanos, atomic

	sf singleflight.Group

	adaptersMu sync.Mutex
	adapters   map[string]*cacheadapter.Adapter
	uidgens    map[string]*uidgen.Generator

	progress *indexprogress.Tracker

	socketPath string
	listener   net.Listener
	wg         sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// New returns a Dispatcher ready to Serve on socketPath.
func New(registry *lspregistry.Registry, workspaces *workspace.Router, pool *lsppool.Pool, socketPath string) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		workspaces: workspaces,
		pool:       pool,
		startTime:  time.Now(),
		adapters:   make(map[string]*cacheadapter.Adapter),
		uidgens:    make(map[string]*uidgen.Generator),
		progress:   indexprogress.New(),
		socketPath: socketPath,
		closed:     make(chan struct{}),
	}
}

func (d *Dispatcher) adapterFor(root string, cache *workspace.Cache) *cacheadapter.Adapter {
	d.adaptersMu.Lock()
	defer d.adaptersMu.Unlock()
	if a, ok := d.adapters[root]; ok {
		return a
	}
	a := cacheadapter.New(cache.Backend)
	d.adapters[root] = a
	return a
}

func (d *Dispatcher) uidGenFor(root string) *uidgen.Generator {
	d.adaptersMu.Lock()
	defer d.adaptersMu.Unlock()
	if g, ok := d.uidgens[root]; ok {
		return g
	}
	g := uidgen.New()
	d.uidgens[root] = g
	return g
}

// Serve opens the local filesystem socket and accepts client
// connections until ctx is canceled or Close is called.
func (d *Dispatcher) Serve(ctx context.Context) error {
	_ = os.Remove(d.socketPath)

	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return lspderrors.NewStorageConfigurationError(d.socketPath, err)
	}
	_ = os.Chmod(d.socketPath, 0o600)
	d.listener = listener

	debug.LogDispatch("listening on %s", d.socketPath)

	go func() {
		<-ctx.Done()
		d.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-d.closed:
				d.wg.Wait()
				return nil
			default:
				return err
			}
		}
		atomic.StoreInt64(&d.heartbeat, time.Now().UnixNano())
		d.wg.Add(1)
		go d.handleConn(ctx, conn)
	}
}

// Close stops accepting new connections and removes the socket file.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		close(d.closed)
		if d.listener != nil {
			_ = d.listener.Close()
		}
		_ = os.Remove(d.socketPath)
	})
	return nil
}

func (d *Dispatcher) handleConn(ctx context.Context, conn net.Conn) {
	defer d.wg.Done()
	defer conn.Close()

	for {
		atomic.StoreInt64(&d.heartbeat, time.Now().UnixNano())

		env, err := ReadFrame(conn)
		if err != nil {
			return
		}

		resp := d.dispatch(ctx, env)
		if err := WriteFrame(conn, resp); err != nil {
			return
		}
		if env.Type == TypeShutdown {
			_ = d.Close()
			return
		}
	}
}

// HeartbeatAge returns how long it has been since the accept loop last
// accepted a connection or a connection last began reading a frame,
// used by the watchdog (spec §4.9).
func (d *Dispatcher) HeartbeatAge() time.Duration {
	last := atomic.LoadInt64(&d.heartbeat)
	if last == 0 {
		return 0
	}
	return time.Since(time.Unix(0, last))
}

func (d *Dispatcher) dispatch(ctx context.Context, env Envelope) Envelope {
	if env.RequestID == "" {
		env.RequestID = uuid.NewString()
	}

	switch env.Type {
	case TypeConnect:
		return d.handleConnect(env)
	case TypeInitializeWorkspace:
		return d.handleInitializeWorkspace(ctx, env)
	case TypeInitWorkspaces:
		return d.handleInitWorkspaces(ctx, env)
	case TypeListWorkspaces:
		return d.handleListWorkspaces(env)
	case TypeDefinition:
		return d.handleNavigation(ctx, env, cacheadapter.MethodDefinition)
	case TypeReferences:
		return d.handleNavigation(ctx, env, cacheadapter.MethodReferences)
	case TypeHover:
		return d.handleNavigation(ctx, env, cacheadapter.MethodHover)
	case TypeCallHierarchy:
		return d.handleNavigation(ctx, env, cacheadapter.MethodPrepareCallHierarchy)
	case TypeCompletion:
		return d.handleCompletion(ctx, env)
	case TypeStatus:
		return d.handleStatus(env)
	case TypeListLanguages:
		return d.handleListLanguages(env)
	case TypePing:
		return encodePayload(env.RequestID, TypePing, PingResponse{Pong: true})
	case TypeHealthCheck:
		healthy := d.HeartbeatAge() == 0 || d.HeartbeatAge() <= 60*time.Second
		return encodePayload(env.RequestID, TypeHealthCheck, HealthCheckResponse{Healthy: healthy})
	case TypeShutdown:
		return encodePayload(env.RequestID, TypeShutdown, ShutdownResponse{Accepted: true})
	case TypeGetLogs:
		return d.handleGetLogs(env)
	default:
		return errorEnvelope(env.RequestID, lspderrors.NewDecodeError("unrecognized request type: "+env.Type))
	}
}

func (d *Dispatcher) handleConnect(env Envelope) Envelope {
	var req ConnectRequest
	if err := decodePayload(env, &req); err != nil {
		return errorEnvelope(env.RequestID, err)
	}
	debug.LogDispatch("client connected: %s", req.ClientID)
	return encodePayload(env.RequestID, TypeConnect, ConnectResponse{ServerVersion: ServerVersion})
}

func (d *Dispatcher) handleInitializeWorkspace(ctx context.Context, env Envelope) Envelope {
	var req InitializeWorkspaceRequest
	if err := decodePayload(env, &req); err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	if _, err := d.workspaces.EnsureWorkspaceCache(ctx, req.WorkspaceRoot); err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	language := req.Language
	if language == "" {
		return encodePayload(env.RequestID, TypeInitializeWorkspace, InitializeWorkspaceResponse{WorkspaceRoot: req.WorkspaceRoot})
	}
	if _, err := d.pool.GetReady(ctx, language, req.WorkspaceRoot); err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	return encodePayload(env.RequestID, TypeInitializeWorkspace, InitializeWorkspaceResponse{
		WorkspaceRoot: req.WorkspaceRoot,
		Language:      language,
	})
}

func (d *Dispatcher) handleInitWorkspaces(ctx context.Context, env Envelope) Envelope {
	var req InitWorkspacesRequest
	if err := decodePayload(env, &req); err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	if _, err := d.workspaces.EnsureWorkspaceCache(ctx, req.WorkspaceRoot); err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	d.progress.SetTotal(len(req.Languages))

	var initialized []InitializeWorkspaceResponse
	for _, lang := range req.Languages {
		d.progress.BeginUnit()
		if _, err := d.pool.GetReady(ctx, lang, req.WorkspaceRoot); err != nil {
			debug.LogDispatch("init_workspaces: %s failed for %s: %v", lang, req.WorkspaceRoot, err)
			d.progress.FinishUnit(false, 0, 0)
			continue
		}
		d.progress.FinishUnit(true, 0, 0)
		initialized = append(initialized, InitializeWorkspaceResponse{WorkspaceRoot: req.WorkspaceRoot, Language: lang})
	}

	return encodePayload(env.RequestID, TypeInitWorkspaces, InitWorkspacesResponse{Initialized: initialized})
}

func (d *Dispatcher) handleListWorkspaces(env Envelope) Envelope {
	d.adaptersMu.Lock()
	roots := make([]string, 0, len(d.adapters))
	for root := range d.adapters {
		roots = append(roots, root)
	}
	d.adaptersMu.Unlock()
	return encodePayload(env.RequestID, TypeListWorkspaces, ListWorkspacesResponse{Workspaces: roots})
}

func (d *Dispatcher) handleStatus(env Envelope) Envelope {
	d.adaptersMu.Lock()
	n := len(d.adapters)
	d.adaptersMu.Unlock()

	age := d.HeartbeatAge()
	snap := d.progress.Snapshot()
	return encodePayload(env.RequestID, TypeStatus, StatusResponse{
		Healthy:        age == 0 || age <= 60*time.Second,
		HeartbeatAgeMs: age.Milliseconds(),
		Workspaces:     n,
		UptimeSeconds:  time.Since(d.startTime).Seconds(),
		Indexing: IndexingProgress{
			Total:         snap.Total,
			Success:       snap.Success,
			Failure:       snap.Failure,
			Active:        snap.Active,
			Skipped:       snap.Skipped,
			Symbols:       snap.Symbols,
			ActiveWorkers: snap.ActiveWorkers,
		},
	})
}

func (d *Dispatcher) handleListLanguages(env Envelope) Envelope {
	return encodePayload(env.RequestID, TypeListLanguages, ListLanguagesResponse{Available: d.registry.ListAvailable()})
}

func (d *Dispatcher) handleGetLogs(env Envelope) Envelope {
	var req GetLogsRequest
	if err := decodePayload(env, &req); err != nil {
		return errorEnvelope(env.RequestID, err)
	}
	return encodePayload(env.RequestID, TypeGetLogs, GetLogsResponse{Lines: nil})
}

func (d *Dispatcher) handleCompletion(ctx context.Context, env Envelope) Envelope {
	var req CompletionRequest
	if err := decodePayload(env, &req); err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	root, language, err := d.resolveWorkspace(req.FilePath, req.WorkspaceHint)
	if err != nil {
		return errorEnvelope(env.RequestID, err)
	}
	srv, err := d.pool.GetReady(ctx, language, root)
	if err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	uri := fileURI(req.FilePath)
	list, err := callCompletion(ctx, srv, uri, req.Line, req.Column)
	if err != nil {
		return errorEnvelope(env.RequestID, err)
	}
	items := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, item.Label)
	}
	return encodePayload(env.RequestID, TypeCompletion, CompletionResponse{Items: items})
}

// resolveWorkspace determines (workspace_root, language) for
// filePath, honoring an explicit hint when given (spec §4.8 step 2).
func (d *Dispatcher) resolveWorkspace(filePath, hint string) (string, string, error) {
	language, ok := DetectLanguage(filePath)
	if !ok {
		return "", "", lspderrors.NewConfigError("file_path", filePath, fmt.Errorf("no language detected from extension"))
	}
	if hint != "" {
		return hint, language, nil
	}
	root, ok := d.registry.FindProjectRoot(filePath, language)
	if !ok {
		return filepath.Dir(filePath), language, nil
	}
	return root, language, nil
}

// contentHash fingerprints a file's bytes with xxhash (spec §3's file
// version "content hash" component) — fast and non-cryptographic,
// matching the workspace-key hash in internal/workspace and the
// teacher's own use of xxhash for its trigram index.
func contentHash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", lspderrors.NewOperationFailedError("read_file", filePath, err)
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}

// fileVersionFor builds the file-version fingerprint attached to a
// navigation response: the content hash already computed for the
// cache key, the file's current size, and a best-effort git
// branch/commit tag.
func fileVersionFor(ctx context.Context, filePath, hash string) types.FileVersion {
	var size int64
	if info, err := os.Stat(filePath); err == nil {
		size = info.Size()
	}
	info := gitinfo.Lookup(ctx, filePath)
	return types.FileVersion{
		ContentHash: hash,
		SizeBytes:   size,
		Branch:      info.Branch,
		Commit:      info.Commit,
	}
}

func relativePath(root, filePath string) string {
	rel, err := filepath.Rel(root, filePath)
	if err != nil {
		return filePath
	}
	return rel
}

func fileURI(path string) lsp.DocumentURI {
	return lsp.DocumentURI("file://" + path)
}

// handleNavigation implements the cache-then-LSP dispatch algorithm of
// spec §4.8 steps 1-8 for definition, references, hover and
// call_hierarchy requests.
func (d *Dispatcher) handleNavigation(ctx context.Context, env Envelope, method cacheadapter.MethodToken) Envelope {
	var req NavigationRequest
	if err := decodePayload(env, &req); err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	root, language, err := d.resolveWorkspace(req.FilePath, req.WorkspaceHint)
	if err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	cache, err := d.workspaces.EnsureWorkspaceCache(ctx, root)
	if err != nil {
		return errorEnvelope(env.RequestID, err)
	}
	adapter := d.adapterFor(root, cache)

	hash, err := contentHash(req.FilePath)
	if err != nil {
		return errorEnvelope(env.RequestID, err)
	}

	key := cacheadapter.Key{
		WorkspaceID: root,
		Method:      method,
		RelPath:     relativePath(root, req.FilePath),
		ContentHash: hash,
	}.Format()

	payload, found, err := adapter.GetUniversalEntry(ctx, key)
	if err != nil {
		debug.Warn("cache read failed for %s, treating as miss: %v", key, err)
	}
	if err == nil && found {
		if err := adapter.UpdateHitMissCounts(ctx, 1, 0); err != nil {
			debug.LogCache("hit counter persist failed for %s: %v", key, err)
		}
		var resp NavigationResponse
		if jsonErr := json.Unmarshal(payload, &resp); jsonErr == nil {
			return encodePayload(env.RequestID, env.Type, resp)
		}
	}
	if err := adapter.UpdateHitMissCounts(ctx, 0, 1); err != nil {
		debug.LogCache("miss counter persist failed for %s: %v", key, err)
	}

	result, err := d.singleflightDispatch(ctx, key, func() (NavigationResponse, error) {
		return d.computeNavigation(ctx, method, language, root, req)
	})
	if err != nil {
		return errorEnvelope(env.RequestID, err)
	}
	result.FileVersion = fileVersionFor(ctx, req.FilePath, hash)

	if raw, err := json.Marshal(result); err == nil {
		if err := adapter.SetUniversalEntry(ctx, key, raw); err != nil {
			if err := adapter.SetUniversalEntry(ctx, key, raw); err != nil {
				debug.LogDispatch("cache write-through failed after retry for %s: %v", key, err)
			}
		}
	}

	if method == cacheadapter.MethodPrepareCallHierarchy {
		d.writeThroughCallHierarchy(ctx, cache, root, req.FilePath, req.Line, req.Column, result.CallHierarchy)
	}

	return encodePayload(env.RequestID, env.Type, result)
}

// singleflightDispatch ensures N concurrent identical requests produce
// exactly one downstream LSP call (spec §4.8 step 5); waiters re-read
// the shared result once the in-flight call finishes.
func (d *Dispatcher) singleflightDispatch(ctx context.Context, key string, fn func() (NavigationResponse, error)) (NavigationResponse, error) {
	v, err, _ := d.sf.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return NavigationResponse{}, err
	}
	return v.(NavigationResponse), nil
}

func (d *Dispatcher) computeNavigation(ctx context.Context, method cacheadapter.MethodToken, language, root string, req NavigationRequest) (NavigationResponse, error) {
	srv, err := d.pool.GetReady(ctx, language, root)
	if err != nil {
		return NavigationResponse{}, err
	}
	uri := fileURI(req.FilePath)

	switch method {
	case cacheadapter.MethodDefinition:
		locs, err := callDefinition(ctx, srv, uri, req.Line, req.Column)
		if err != nil {
			return NavigationResponse{}, err
		}
		return NavigationResponse{Locations: toLocationDTOs(locs)}, nil

	case cacheadapter.MethodReferences:
		locs, err := callReferences(ctx, srv, uri, req.Line, req.Column, req.IncludeDeclaration)
		if err != nil {
			return NavigationResponse{}, err
		}
		return NavigationResponse{Locations: toLocationDTOs(locs)}, nil

	case cacheadapter.MethodHover:
		hover, err := callHover(ctx, srv, uri, req.Line, req.Column)
		if err != nil {
			return NavigationResponse{}, err
		}
		return NavigationResponse{Hover: &HoverDTO{Contents: hoverText(hover)}}, nil

	case cacheadapter.MethodPrepareCallHierarchy:
		ch, err := d.resolveCallHierarchy(ctx, srv, uri, req.Line, req.Column)
		if err != nil {
			return NavigationResponse{}, err
		}
		return NavigationResponse{CallHierarchy: ch}, nil

	default:
		return NavigationResponse{}, lspderrors.NewDecodeError("unsupported navigation method: " + string(method))
	}
}

func (d *Dispatcher) resolveCallHierarchy(ctx context.Context, srv *lsppool.Server, uri lsp.DocumentURI, line, column int) (*CallHierarchyDTO, error) {
	items, err := callPrepareCallHierarchy(ctx, srv, uri, line, column)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &CallHierarchyDTO{}, nil
	}

	item := items[0]
	incoming, err := callIncomingCalls(ctx, srv, item)
	if err != nil {
		return nil, err
	}
	outgoing, err := callOutgoingCalls(ctx, srv, item)
	if err != nil {
		return nil, err
	}

	dto := &CallHierarchyDTO{}
	for _, c := range incoming {
		dto.Incoming = append(dto.Incoming, callHierarchyItemToDTO(c.From))
	}
	for _, c := range outgoing {
		dto.Outgoing = append(dto.Outgoing, callHierarchyItemToDTO(c.To))
	}
	return dto, nil
}

// writeThroughCallHierarchy mirrors a resolved call hierarchy into C5
// (spec §4.8 step 8): sentinel edges when the result came back empty,
// real edges keyed by a position-derived UID otherwise. The generic
// LSP call-hierarchy wire shape carries no authoritative compiler UID,
// so the subject symbol's UID is minted the same way C4 mints any
// scoped local: by file path and position.
func (d *Dispatcher) writeThroughCallHierarchy(ctx context.Context, cache *workspace.Cache, root, filePath string, line, column int, ch *CallHierarchyDTO) {
	if ch == nil {
		return
	}
	store := symbolstore.New(cache.DB)
	gen := d.uidGenFor(root)

	subjectUID, err := gen.Generate(uidgen.Input{
		Name:      filepath.Base(filePath),
		Language:  "unknown",
		FilePath:  filePath,
		Line:      line,
		Character: column,
		IsScoped:  true,
	})
	if err != nil {
		debug.LogDispatch("call hierarchy write-through: uid generation failed: %v", err)
		return
	}

	if len(ch.Incoming) == 0 && len(ch.Outgoing) == 0 {
		if err := store.CreateNoneEdges(ctx, subjectUID); err != nil {
			debug.LogDispatch("call hierarchy write-through: %v", err)
		}
		return
	}

	edges := make([]types.Edge, 0, 2*len(ch.Incoming)+len(ch.Outgoing))
	for _, loc := range ch.Incoming {
		edges = append(edges, types.Edge{
			SourceUID:  locationUID(loc),
			TargetUID:  subjectUID,
			Relation:   types.RelationCalls,
			Confidence: 1.0,
		})
		edges = append(edges, types.Edge{
			SourceUID:  subjectUID,
			TargetUID:  locationUID(loc),
			Relation:   types.RelationCalledBy,
			Confidence: 1.0,
		})
	}
	for _, loc := range ch.Outgoing {
		edges = append(edges, types.Edge{
			SourceUID:  subjectUID,
			TargetUID:  locationUID(loc),
			Relation:   types.RelationCalls,
			Confidence: 1.0,
		})
	}
	if err := store.StoreEdges(ctx, edges); err != nil {
		debug.LogDispatch("call hierarchy write-through: %v", err)
	}
}

func locationUID(loc LocationDTO) string {
	return fmt.Sprintf("%s:%d:%d", loc.FilePath, loc.Line, loc.Column)
}

func callHierarchyItemToDTO(item callHierarchyItem) LocationDTO {
	return LocationDTO{
		FilePath: strings.TrimPrefix(string(item.URI), "file://"),
		Line:     item.Range.Start.Line,
		Column:   item.Range.Start.Character,
		EndLine:  item.Range.End.Line,
		EndCol:   item.Range.End.Character,
	}
}

func toLocationDTOs(locs []lsp.Location) []LocationDTO {
	out := make([]LocationDTO, 0, len(locs))
	for _, loc := range locs {
		out = append(out, LocationDTO{
			FilePath: strings.TrimPrefix(string(loc.URI), "file://"),
			Line:     loc.Range.Start.Line,
			Column:   loc.Range.Start.Character,
			EndLine:  loc.Range.End.Line,
			EndCol:   loc.Range.End.Character,
		})
	}
	return out
}

func hoverText(hover *lsp.Hover) string {
	if hover == nil {
		return ""
	}
	var b strings.Builder
	for i, part := range hover.Contents {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Value)
	}
	return b.String()
}
