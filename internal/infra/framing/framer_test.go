package framing

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

const (
	wireInitialize = `{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`
	wireToolCall   = `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"read_file","arguments":{"path":"/tmp/a"}}}`
	wireResult     = `{"jsonrpc":"2.0","id":7,"result":{"content":[{"type":"text","text":"ok"}]}}`
	wireNotify     = `{"jsonrpc":"2.0","method":"notifications/initialized"}`
)

// drain pulls every decoded message out of the decoder, failing the test on
// any frame error.
func drain(t *testing.T, d *Decoder) []string {
	t.Helper()
	var out []string
	for {
		msg, err := d.Next()
		require.NoError(t, err)
		if msg == nil {
			return out
		}
		wire, err := jsonrpc.EncodeMessage(msg)
		require.NoError(t, err)
		out = append(out, string(wire))
	}
}

func TestDecoder_ChunkBoundaryInvariance(t *testing.T) {
	stream := strings.Join([]string{wireInitialize, wireToolCall, wireResult, wireNotify}, "\n") + "\n"

	whole := NewDecoder(0)
	whole.Feed([]byte(stream))
	want := drain(t, whole)
	require.Len(t, want, 4)

	for _, chunkSize := range []int{1, 2, 3, 7, 64, 1024} {
		split := NewDecoder(0)
		var got []string
		for i := 0; i < len(stream); i += chunkSize {
			end := i + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			split.Feed([]byte(stream[i:end]))
			got = append(got, drain(t, split)...)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("chunk size %d changed decoded sequence (-want +got):\n%s", chunkSize, diff)
		}
	}
}

func TestDecoder_RoundTrip(t *testing.T) {
	msg, err := jsonrpc.DecodeMessage([]byte(wireToolCall))
	require.NoError(t, err)

	framed, err := Encode(msg)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(framed, []byte("\n")))

	d := NewDecoder(0)
	d.Feed(framed)
	again, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, again)

	first, err := jsonrpc.EncodeMessage(msg)
	require.NoError(t, err)
	second, err := jsonrpc.EncodeMessage(again)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestDecoder_MalformedFrameDroppedAndContinues(t *testing.T) {
	d := NewDecoder(0)
	d.Feed([]byte("this is not json\n" + wireNotify + "\n"))

	_, err := d.Next()
	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, "this is not json", string(frameErr.Unit))

	msg, err := d.Next()
	require.NoError(t, err)
	req, ok := msg.(*jsonrpc.Request)
	require.True(t, ok)
	assert.Equal(t, "notifications/initialized", req.Method)
	assert.False(t, req.ID.IsValid(), "notification must carry no id")
}

func TestDecoder_BlankLinesSkipped(t *testing.T) {
	d := NewDecoder(0)
	d.Feed([]byte("\n\r\n" + wireNotify + "\n\n"))

	msg, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, msg)

	msg, err = d.Next()
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDecoder_OversizedFrameDropped(t *testing.T) {
	d := NewDecoder(32)
	d.Feed([]byte(strings.Repeat("x", 64)))

	_, err := d.Next()
	require.ErrorIs(t, err, domain.ErrFrameTooLarge)

	// Remainder of the oversized unit keeps arriving, then a valid frame.
	d.Feed([]byte(strings.Repeat("x", 16) + "\n"))
	msg, err := d.Next()
	require.NoError(t, err)
	assert.Nil(t, msg)

	d.Feed([]byte(wireNotify + "\n"))
	msg, err = d.Next()
	require.NoError(t, err)
	require.NotNil(t, msg)
}

func TestDecoder_OversizedFrameWithDelimiterInSameChunkDropped(t *testing.T) {
	d := NewDecoder(32)

	// The whole oversized unit, its newline, and a valid frame arrive in
	// one chunk. The unit is dropped, the valid frame still decodes.
	d.Feed([]byte(strings.Repeat("x", 64) + "\n" + wireNotify + "\n"))

	_, err := d.Next()
	require.ErrorIs(t, err, domain.ErrFrameTooLarge)

	msg, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, msg)

	msg, err = d.Next()
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestWriter_OversizedFrameRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 16)

	err := w.WriteFrame(bytes.Repeat([]byte("y"), 32))
	require.ErrorIs(t, err, domain.ErrFrameTooLarge)
	assert.Zero(t, buf.Len(), "oversized frame must not be written")
}

func TestWriter_WriteMessage(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)

	msg, err := jsonrpc.DecodeMessage([]byte(wireResult))
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(msg))

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	assert.JSONEq(t, wireResult, strings.TrimSpace(out))
}

func TestFrameError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &FrameError{Unit: []byte("x"), Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "malformed frame")
}
