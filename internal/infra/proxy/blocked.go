package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// buildBlockedResponse synthesizes the successful-looking tool result
// returned to the client when a call is denied. It reuses the original
// request id so the client's own correlation keeps working, and carries the
// denial as an error-flagged text content block rather than a protocol
// error, which most clients surface to the model verbatim.
func buildBlockedResponse(id jsonrpc.ID, tool, reason string) (*jsonrpc.Response, error) {
	text := fmt.Sprintf("Tool call to %q was blocked: %s", tool, reason)
	result := &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal blocked result: %w", err)
	}
	return &jsonrpc.Response{ID: id, Result: payload}, nil
}
