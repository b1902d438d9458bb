package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

// pendingToolCall correlates an outstanding tools/call request with its
// eventual response.
type pendingToolCall struct {
	tool string
	id   jsonrpc.ID
}

// Tracker holds the per-connection interception state: in-flight tool calls
// and discovery requests keyed by request id, plus the server identity
// captured from the initialize exchange. Multiple calls may be in flight at
// once; responses are matched by exact id equality, never arrival order.
type Tracker struct {
	mu           sync.Mutex
	pendingCalls map[string]pendingToolCall
	pendingLists map[string]struct{}
	initializeID string
	server       domain.ServerInfo
}

func NewTracker(server domain.ServerInfo) *Tracker {
	return &Tracker{
		pendingCalls: make(map[string]pendingToolCall),
		pendingLists: make(map[string]struct{}),
		server:       server,
	}
}

// TrackCall records an in-flight tools/call. At most one entry exists per
// unresolved request id; a duplicate id overwrites, matching the protocol's
// requirement that ids be unique among a peer's in-flight requests.
func (t *Tracker) TrackCall(id jsonrpc.ID, tool string) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.pendingCalls[key] = pendingToolCall{tool: tool, id: id}
	t.mu.Unlock()
	return nil
}

// ResolveCall removes and returns the call matching a response id.
func (t *Tracker) ResolveCall(id jsonrpc.ID) (pendingToolCall, bool) {
	key, err := idKey(id)
	if err != nil {
		return pendingToolCall{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.pendingCalls[key]
	if ok {
		delete(t.pendingCalls, key)
	}
	return call, ok
}

// DropCall clears a tracked call whose request was never forwarded.
func (t *Tracker) DropCall(id jsonrpc.ID) {
	key, err := idKey(id)
	if err != nil {
		return
	}
	t.mu.Lock()
	delete(t.pendingCalls, key)
	t.mu.Unlock()
}

// TrackDiscovery records an in-flight tools/list request.
func (t *Tracker) TrackDiscovery(id jsonrpc.ID) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.pendingLists[key] = struct{}{}
	t.mu.Unlock()
	return nil
}

// ResolveDiscovery reports whether a response id matches a tracked
// tools/list request, clearing it when matched.
func (t *Tracker) ResolveDiscovery(id jsonrpc.ID) bool {
	key, err := idKey(id)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pendingLists[key]; !ok {
		return false
	}
	delete(t.pendingLists, key)
	return true
}

// TrackInitialize notes the initialize request id for diagnostics and for
// capturing the server identity from its response.
func (t *Tracker) TrackInitialize(id jsonrpc.ID) {
	key, err := idKey(id)
	if err != nil {
		return
	}
	t.mu.Lock()
	t.initializeID = key
	t.mu.Unlock()
}

// initializeResult is the slice of the initialize response the proxy cares
// about: protocol version and the target server's advertised identity.
type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

// ObserveInitializeResponse captures server identity from the response
// matching the tracked initialize id. It reports whether the id matched.
func (t *Tracker) ObserveInitializeResponse(resp *jsonrpc.Response) bool {
	key, err := idKey(resp.ID)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initializeID == "" || key != t.initializeID {
		return false
	}
	t.initializeID = ""

	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return true
	}
	if result.ServerInfo.Name != "" {
		t.server.Name = result.ServerInfo.Name
	}
	t.server.Version = result.ServerInfo.Version
	return true
}

// Server returns the current verification context.
func (t *Tracker) Server() domain.ServerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.server
}

// PendingCalls reports the number of unresolved tool calls, for shutdown
// diagnostics. Entries are not leaked across connections: the tracker dies
// with the proxy process.
func (t *Tracker) PendingCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pendingCalls)
}

func idKey(id jsonrpc.ID) (string, error) {
	if !id.IsValid() {
		return "", errors.New("missing request id")
	}
	raw := id.Raw()
	switch typed := raw.(type) {
	case string:
		return "s:" + typed, nil
	case float64:
		return fmt.Sprintf("n:%v", typed), nil
	case int:
		return fmt.Sprintf("n:%v", typed), nil
	case int64:
		return fmt.Sprintf("n:%v", typed), nil
	case json.Number:
		return "n:" + typed.String(), nil
	default:
		return "", fmt.Errorf("unsupported id type %T", raw)
	}
}
