package lsppool

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lspdaemon/lspd/internal/lspregistry"
)

// fakeLanguageServer answers "initialize" with an empty result and
// "shutdown" with nil, the minimum an LSP server must do to satisfy
// the handshake this package drives.
type fakeLanguageServer struct {
	hang bool
}

func (f fakeLanguageServer) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	switch req.Method {
	case "initialize":
		if f.hang {
			<-ctx.Done()
			return
		}
		_ = conn.Reply(ctx, req.ID, struct{}{})
	case "shutdown":
		_ = conn.Reply(ctx, req.ID, nil)
	}
}

// pipeConn wires two in-process jsonrpc2.Conns over a net.Pipe: one
// acting as this pool's client connection, the other as the fake
// server answering it.
func pipeConn(ctx context.Context, hang bool) *jsonrpc2.Conn {
	clientSide, serverSide := net.Pipe()

	jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(serverSide, jsonrpc2.VSCodeObjectCodec{}), fakeLanguageServer{hang: hang})
	return jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}), handler{})
}

func TestInitializeOverConn_Success(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := pipeConn(ctx, false)
	config := lspregistry.ServerConfig{Language: "mock", InitializationTimeoutSecs: 2}

	var states []State
	err := initializeOverConn(ctx, conn, config, t.TempDir(), func(s State) { states = append(states, s) })
	require.NoError(t, err)
	assert.Equal(t, []State{StateInitializing, StateReady}, states)
}

func TestInitializeOverConn_TimeoutFailsAndMarksFailed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := pipeConn(ctx, true)
	config := lspregistry.ServerConfig{Language: "mock", InitializationTimeoutSecs: 1}

	var states []State
	err := initializeOverConn(ctx, conn, config, t.TempDir(), func(s State) { states = append(states, s) })
	require.Error(t, err)
	assert.Equal(t, []State{StateInitializing, StateFailed}, states)
}

func TestServer_CallRejectedWhenNotReady(t *testing.T) {
	srv := &Server{Language: "mock", state: StateSpawning}
	var result interface{}
	err := srv.Call(context.Background(), "textDocument/hover", nil, &result)
	assert.Error(t, err)
}

func TestServer_CallServesWhenReady(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := pipeConn(ctx, false)
	srv := &Server{Language: "mock", state: StateInitializing, conn: conn}
	srv.setState(StateReady)

	var result struct{}
	err := srv.Call(ctx, "initialize", nil, &result)
	assert.NoError(t, err)
}

func TestPool_GetReady_UnknownLanguageFails(t *testing.T) {
	reg, err := lspregistry.New("")
	require.NoError(t, err)
	p := New(reg)
	_, err = p.GetReady(context.Background(), "cobol-dialect-nobody-registers", t.TempDir())
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "unknown", State(99).String())
}
