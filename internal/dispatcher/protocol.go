// Package dispatcher implements the client-facing request dispatcher
// (spec §4.8, component C9): a length-prefixed JSON wire protocol over
// a local filesystem socket, and the cache-then-LSP dispatch algorithm
// that answers navigation requests.
package dispatcher

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	lspderrors "github.com/lspdaemon/lspd/internal/errors"
)

// MaxFrameBytes bounds one message body; longer frames fail the
// connection with a decode error rather than attempting to read them.
const MaxFrameBytes = 10 << 20 // 10 MiB

// Envelope is the wire shape shared by every request and response: a
// type tag, the client-supplied or server-assigned request_id, and
// the type-specific payload carried opaquely as raw JSON.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ReadFrame reads one length-prefixed message from r: a 4-byte
// big-endian length followed by that many bytes of UTF-8 JSON.
func ReadFrame(r io.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return Envelope{}, lspderrors.NewDecodeError(fmt.Sprintf("frame of %d bytes exceeds max %d", n, MaxFrameBytes))
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, lspderrors.NewDecodeError("malformed JSON frame: " + err.Error())
	}
	return env, nil
}

// WriteFrame serializes env and writes it to w length-prefixed.
func WriteFrame(w io.Writer, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if len(body) > MaxFrameBytes {
		return lspderrors.NewDecodeError(fmt.Sprintf("outgoing frame of %d bytes exceeds max %d", len(body), MaxFrameBytes))
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func errorEnvelope(requestID string, err error) Envelope {
	return Envelope{Type: "error", RequestID: requestID, Error: err.Error()}
}

func decodePayload(env Envelope, v interface{}) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return lspderrors.NewDecodeError("malformed payload for " + env.Type + ": " + err.Error())
	}
	return nil
}

func encodePayload(requestID, typ string, v interface{}) Envelope {
	raw, err := json.Marshal(v)
	if err != nil {
		return errorEnvelope(requestID, err)
	}
	return Envelope{Type: typ, RequestID: requestID, Payload: raw}
}
