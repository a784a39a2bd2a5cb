package main

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/lspdaemon/lspd/internal/dispatcher"
)

// dialTimeout bounds how long a CLI subcommand waits to connect to an
// already-running daemon before giving up.
const dialTimeout = 2 * time.Second

// sendRequest dials the daemon's socket, sends one request envelope,
// and returns its response envelope.
func sendRequest(c *cli.Context, typ string, payload interface{}) (dispatcher.Envelope, error) {
	socketPath, err := socketPathFrom(c)
	if err != nil {
		return dispatcher.Envelope{}, err
	}

	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return dispatcher.Envelope{}, fmt.Errorf("connect to daemon at %s: %w (is it running? try 'lspd start')", socketPath, err)
	}
	defer conn.Close()

	raw, err := json.Marshal(payload)
	if err != nil {
		return dispatcher.Envelope{}, err
	}

	req := dispatcher.Envelope{Type: typ, RequestID: uuid.NewString(), Payload: raw}
	if err := dispatcher.WriteFrame(conn, req); err != nil {
		return dispatcher.Envelope{}, fmt.Errorf("write request: %w", err)
	}

	resp, err := dispatcher.ReadFrame(conn)
	if err != nil {
		return dispatcher.Envelope{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}
