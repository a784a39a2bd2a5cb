package lsppool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/lspdaemon/lspd/internal/debug"
	lspderrors "github.com/lspdaemon/lspd/internal/errors"
	"github.com/lspdaemon/lspd/internal/lspregistry"
)

// State is a server's position in the spec §4.8 state machine:
// Spawning -> Initializing -> Ready -> Draining -> {Exited, Failed}.
type State int

const (
	StateSpawning State = iota
	StateInitializing
	StateReady
	StateDraining
	StateExited
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Server is one spawned LSP child process and its connection.
type Server struct {
	Language  string
	Workspace string

	mu    sync.Mutex
	state State

	conn *jsonrpc2.Conn
	cmd  *exec.Cmd

	// reqMu serializes dispatches: one in-flight request per server,
	// per spec §4.8 step 4.
	reqMu sync.Mutex
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Call sends method with params and decodes the result into result,
// serialized against any other in-flight call on this server.
func (s *Server) Call(ctx context.Context, method string, params, result interface{}) error {
	if s.State() != StateReady {
		return lspderrors.NewLspError(s.Language, s.Workspace, method, fmt.Errorf("server not ready (state=%s)", s.State()))
	}
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	if err := s.conn.Call(ctx, method, params, result); err != nil {
		return lspderrors.NewLspError(s.Language, s.Workspace, method, err)
	}
	return nil
}

// shutdown sends the LSP shutdown/exit sequence, then kills the
// process if it has not exited within the grace period.
func (s *Server) shutdown(grace time.Duration) {
	s.setState(StateDraining)

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	_ = s.conn.Call(ctx, "shutdown", nil, nil)
	_ = s.conn.Notify(ctx, "exit", nil)
	_ = s.conn.Close()

	done := make(chan struct{})
	go func() {
		_ = s.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		_ = s.cmd.Process.Kill()
	}
	s.setState(StateExited)
}

// key identifies one (language, workspace) pool slot.
type key struct {
	language  string
	workspace string
}

// Pool owns zero or more Server instances per (language, workspace).
type Pool struct {
	registry *lspregistry.Registry

	mu      sync.Mutex
	servers map[key]*Server
	locks   map[key]*sync.Mutex
}

// New returns an empty Pool backed by registry for server configs.
func New(registry *lspregistry.Registry) *Pool {
	return &Pool{
		registry: registry,
		servers:  make(map[key]*Server),
		locks:    make(map[key]*sync.Mutex),
	}
}

func (p *Pool) lockFor(k key) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[k]
	if !ok {
		l = &sync.Mutex{}
		p.locks[k] = l
	}
	return l
}

// GetReady returns an already-Ready server for (language, workspace),
// spawning and initializing one lazily if none exists yet.
func (p *Pool) GetReady(ctx context.Context, language, workspaceRoot string) (*Server, error) {
	k := key{language: language, workspace: workspaceRoot}

	p.mu.Lock()
	existing, ok := p.servers[k]
	p.mu.Unlock()
	if ok && existing.State() == StateReady {
		return existing, nil
	}

	lock := p.lockFor(k)
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	existing, ok = p.servers[k]
	p.mu.Unlock()
	if ok && existing.State() == StateReady {
		return existing, nil
	}

	config, ok := p.registry.Get(language)
	if !ok {
		return nil, lspderrors.NewLspError(language, workspaceRoot, "get_config", fmt.Errorf("no LSP registered for language %q", language))
	}

	srv, err := p.spawnAndInitialize(ctx, config, workspaceRoot)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.servers[k] = srv
	p.mu.Unlock()
	return srv, nil
}

func (p *Pool) spawnAndInitialize(ctx context.Context, config lspregistry.ServerConfig, workspaceRoot string) (*Server, error) {
	srv := &Server{Language: config.Language, Workspace: workspaceRoot, state: StateSpawning}

	conn, cmd, err := newConn(ctx, config)
	if err != nil {
		srv.setState(StateFailed)
		return nil, err
	}
	srv.conn = conn
	srv.cmd = cmd

	if err := initializeOverConn(ctx, conn, config, workspaceRoot, srv.setState); err != nil {
		_ = conn.Close()
		return nil, err
	}

	debug.LogPool("server ready: language=%s workspace=%s", config.Language, workspaceRoot)
	return srv, nil
}

// initializeOverConn runs the initialize/initialized handshake (spec
// §4.8 step 3) over an already-wired conn, reporting state
// transitions through setState. Split out from spawnAndInitialize so
// the handshake itself can be exercised against an in-process fake
// server, without spawning a real child process.
func initializeOverConn(ctx context.Context, conn *jsonrpc2.Conn, config lspregistry.ServerConfig, workspaceRoot string, setState func(State)) error {
	setState(StateInitializing)

	initCtx, cancel := context.WithTimeout(ctx, config.timeout())
	defer cancel()

	params := lsp.InitializeParams{
		RootPath:              workspaceRoot,
		RootURI:               lsp.DocumentURI("file://" + workspaceRoot),
		InitializationOptions: rawToAny(config.InitializationOptions),
	}

	var result lsp.InitializeResult
	if err := conn.Call(initCtx, "initialize", params, &result); err != nil {
		setState(StateFailed)
		return lspderrors.NewLspError(config.Language, workspaceRoot, "initialize", err)
	}
	if err := conn.Notify(ctx, "initialized", struct{}{}); err != nil {
		debug.LogPool("initialized notification failed for %s: %v", config.Language, err)
	}

	setState(StateReady)
	return nil
}

func rawToAny(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return json.RawMessage(raw)
}

// ShutdownAll drains and terminates every server in the pool.
func (p *Pool) ShutdownAll(grace time.Duration) {
	p.mu.Lock()
	servers := make([]*Server, 0, len(p.servers))
	for _, s := range p.servers {
		servers = append(servers, s)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s *Server) {
			defer wg.Done()
			s.shutdown(grace)
		}(s)
	}
	wg.Wait()
}
