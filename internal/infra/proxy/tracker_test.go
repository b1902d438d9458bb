package proxy

import (
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

func mustMakeID(t *testing.T, v any) jsonrpc.ID {
	t.Helper()
	id, err := jsonrpc.MakeID(v)
	require.NoError(t, err)
	return id
}

func TestTracker_CallLifecycle(t *testing.T) {
	tr := NewTracker(domain.ServerInfo{AppName: "cursor", Name: "fs"})

	require.NoError(t, tr.TrackCall(mustMakeID(t, float64(7)), "read_file"))
	require.NoError(t, tr.TrackCall(mustMakeID(t, "abc"), "list_dir"))
	assert.Equal(t, 2, tr.PendingCalls())

	// Responses resolve by id, not arrival order.
	call, ok := tr.ResolveCall(mustMakeID(t, "abc"))
	require.True(t, ok)
	assert.Equal(t, "list_dir", call.tool)

	call, ok = tr.ResolveCall(mustMakeID(t, float64(7)))
	require.True(t, ok)
	assert.Equal(t, "read_file", call.tool)

	// A resolved id does not match twice.
	_, ok = tr.ResolveCall(mustMakeID(t, float64(7)))
	assert.False(t, ok)
	assert.Equal(t, 0, tr.PendingCalls())
}

func TestTracker_NumericAndStringIDsDoNotCollide(t *testing.T) {
	tr := NewTracker(domain.ServerInfo{})

	require.NoError(t, tr.TrackCall(mustMakeID(t, float64(1)), "numeric"))
	require.NoError(t, tr.TrackCall(mustMakeID(t, "1"), "text"))

	call, ok := tr.ResolveCall(mustMakeID(t, "1"))
	require.True(t, ok)
	assert.Equal(t, "text", call.tool)

	call, ok = tr.ResolveCall(mustMakeID(t, float64(1)))
	require.True(t, ok)
	assert.Equal(t, "numeric", call.tool)
}

func TestTracker_UnmatchedResponse(t *testing.T) {
	tr := NewTracker(domain.ServerInfo{})
	_, ok := tr.ResolveCall(mustMakeID(t, float64(42)))
	assert.False(t, ok)
	assert.False(t, tr.ResolveDiscovery(mustMakeID(t, float64(42))))
}

func TestTracker_Discovery(t *testing.T) {
	tr := NewTracker(domain.ServerInfo{})
	require.NoError(t, tr.TrackDiscovery(mustMakeID(t, float64(3))))
	assert.True(t, tr.ResolveDiscovery(mustMakeID(t, float64(3))))
	assert.False(t, tr.ResolveDiscovery(mustMakeID(t, float64(3))))
}

func TestTracker_ObserveInitializeResponse(t *testing.T) {
	tr := NewTracker(domain.ServerInfo{AppName: "cursor"})
	id := mustMakeID(t, float64(0))
	tr.TrackInitialize(id)

	result, err := json.Marshal(map[string]any{
		"protocolVersion": "2025-06-18",
		"serverInfo":      map[string]any{"name": "filesystem", "version": "1.4.2"},
	})
	require.NoError(t, err)

	matched := tr.ObserveInitializeResponse(&jsonrpc.Response{ID: id, Result: result})
	require.True(t, matched)

	server := tr.Server()
	assert.Equal(t, "cursor", server.AppName)
	assert.Equal(t, "filesystem", server.Name)
	assert.Equal(t, "1.4.2", server.Version)

	// The handshake happens once per session.
	assert.False(t, tr.ObserveInitializeResponse(&jsonrpc.Response{ID: id, Result: result}))
}

func TestIDKey(t *testing.T) {
	key, err := idKey(mustMakeID(t, "req-1"))
	require.NoError(t, err)
	assert.Equal(t, "s:req-1", key)

	numKey, err := idKey(mustMakeID(t, float64(7)))
	require.NoError(t, err)

	strKey, err := idKey(mustMakeID(t, "7"))
	require.NoError(t, err)
	assert.NotEqual(t, numKey, strKey)

	_, err = idKey(jsonrpc.ID{})
	assert.Error(t, err)
}
