package dispatcher

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrame_ReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	env := encodePayload("req-1", TypePing, PingRequest{})
	require.NoError(t, WriteFrame(&buf, env))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, env.Type, got.Type)
	assert.Equal(t, env.RequestID, got.RequestID)
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], MaxFrameBytes+1)
	buf.Write(lenBuf[:])

	_, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestReadFrame_RejectsMalformedJSON(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("{not json")
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	buf.Write(lenBuf[:])
	buf.Write(body)

	_, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestReadFrame_TruncatedBodyIsAnError(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 10)
	buf.Write(lenBuf[:])
	buf.WriteString("short")

	_, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestDecodePayload_RoundTrip(t *testing.T) {
	env := encodePayload("req-2", TypeConnect, ConnectRequest{ClientID: "ide-1"})
	var req ConnectRequest
	require.NoError(t, decodePayload(env, &req))
	assert.Equal(t, "ide-1", req.ClientID)
}

func TestErrorEnvelope_CarriesReason(t *testing.T) {
	env := errorEnvelope("req-3", assertErr("boom"))
	assert.Equal(t, TypeError, env.Type)
	assert.True(t, strings.Contains(env.Error, "boom"))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
