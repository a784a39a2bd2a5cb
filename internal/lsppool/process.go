// Package lsppool implements the per-(language, workspace) pool of
// child LSP server processes (spec §4.8, component C8): spawn,
// initialize handshake, request serialization, and retirement.
package lsppool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/lspdaemon/lspd/internal/debug"
	lspderrors "github.com/lspdaemon/lspd/internal/errors"
	"github.com/lspdaemon/lspd/internal/lspregistry"
)

// childIO wires an exec.Cmd's stdin/stdout together as one
// io.ReadWriteCloser for jsonrpc2, draining stderr to the debug log
// instead of discarding it.
type childIO struct {
	io.ReadCloser
	io.WriteCloser
	cmd *exec.Cmd
}

func (c childIO) Close() error {
	if err := c.WriteCloser.Close(); err != nil {
		return err
	}
	return c.ReadCloser.Close()
}

func spawnChild(command string, args []string) (childIO, *exec.Cmd, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return childIO{}, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return childIO{}, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return childIO{}, nil, fmt.Errorf("stderr pipe: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			debug.LogPool("child %s stderr: %s", command, scanner.Text())
		}
	}()

	if err := cmd.Start(); err != nil {
		return childIO{}, nil, fmt.Errorf("start: %w", err)
	}

	return childIO{ReadCloser: stdout, WriteCloser: stdin, cmd: cmd}, cmd, nil
}

// handler discards unsolicited server->client requests and
// notifications; this pool never needs to answer workspace/
// configuration or window/showMessage callbacks to function.
type handler struct{}

func (handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {}

// newConn starts command and returns a jsonrpc2.Conn wired to its
// stdio over the Content-Length-framed VSCodeObjectCodec, the same
// transport every LSP server speaks.
func newConn(ctx context.Context, config lspregistry.ServerConfig) (*jsonrpc2.Conn, *exec.Cmd, error) {
	rwc, cmd, err := spawnChild(config.Command, config.Args)
	if err != nil {
		return nil, nil, lspderrors.NewLspError(config.Language, "", "spawn", err)
	}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, handler{})
	return conn, cmd, nil
}
