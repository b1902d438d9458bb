package proxy

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
	"github.com/mcp-defender/mcp-defender/internal/infra/augment"
)

// handleServerMessage dispatches one message read from the target server.
// Requests and notifications originated by the server (sampling, progress,
// log notifications) pass straight through to the client.
func (p *Proxy) handleServerMessage(ctx context.Context, msg jsonrpc.Message) error {
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		return p.clientW.WriteMessage(msg)
	}

	if p.tracker.ObserveInitializeResponse(resp) {
		server := p.tracker.Server()
		p.logger.Info("target server identified",
			zap.String("server", server.Name),
			zap.String("version", server.Version))
		p.initOnce.Do(func() { close(p.initSeen) })
		return p.clientW.WriteMessage(resp)
	}

	if p.tracker.ResolveDiscovery(resp.ID) {
		return p.handleDiscoveryResponse(resp)
	}

	if call, ok := p.tracker.ResolveCall(resp.ID); ok {
		return p.handleToolCallResponse(ctx, resp, call)
	}

	return p.clientW.WriteMessage(resp)
}

// handleDiscoveryResponse rewrites a tools/list result so every tool gains
// the intent argument, and ships the unmodified descriptors to the decision
// service. Fields beyond description and inputSchema survive the rewrite.
func (p *Proxy) handleDiscoveryResponse(resp *jsonrpc.Response) error {
	if resp.Error != nil || len(resp.Result) == 0 {
		p.reportRegistration(domain.ErrRegistrationFailed)
		return p.clientW.WriteMessage(resp)
	}

	result := map[string]any{}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		p.logger.Warn("unreadable tools/list result, forwarding as-is", zap.Error(err))
		p.reportRegistration(err)
		return p.clientW.WriteMessage(resp)
	}
	rawTools, _ := result["tools"].([]any)

	originals := make([]domain.ToolDescriptor, 0, len(rawTools))
	for i, raw := range rawTools {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		description, _ := entry["description"].(string)
		descriptor := domain.ToolDescriptor{
			Name:        name,
			Description: description,
			InputSchema: entry["inputSchema"],
		}
		originals = append(originals, descriptor)

		secured := augment.Apply(descriptor)
		entry["description"] = secured.Description
		entry["inputSchema"] = secured.InputSchema
		rawTools[i] = entry
	}

	server := p.tracker.Server()
	p.logger.Info("secured discovered tools",
		zap.String("server", server.Name),
		zap.Int("tools", len(originals)))

	if p.syncReg {
		ctx, cancel := context.WithTimeout(context.Background(), registrationTimeout)
		err := p.verifier.RegisterTools(ctx, originals, server)
		cancel()
		p.reportRegistration(err)
	} else {
		p.registrar.enqueue(originals, server)
	}

	if len(rawTools) > 0 {
		result["tools"] = rawTools
		rewritten, err := json.Marshal(result)
		if err == nil {
			resp = &jsonrpc.Response{ID: resp.ID, Result: rewritten}
		}
	}
	return p.clientW.WriteMessage(resp)
}

// handleToolCallResponse verifies a tool result before it reaches the
// client. A denial replaces the result with the standard blocked shape
// under the same response id.
func (p *Proxy) handleToolCallResponse(ctx context.Context, resp *jsonrpc.Response, call pendingToolCall) error {
	wire, err := jsonrpc.EncodeMessage(resp)
	if err != nil {
		return p.clientW.WriteMessage(resp)
	}
	outcome := p.verifier.VerifyResponse(ctx, wire, call.tool, p.tracker.Server())

	if outcome.Blocked {
		p.logger.Info("blocked tool result",
			zap.String("tool", call.tool),
			zap.String("reason", outcome.Reason))
		blocked, err := buildBlockedResponse(resp.ID, call.tool, outcome.Reason)
		if err != nil {
			return err
		}
		return p.clientW.WriteMessage(blocked)
	}

	if outcome.Modified && len(outcome.Message) > 0 {
		if msg, err := jsonrpc.DecodeMessage(outcome.Message); err == nil {
			if replaced, ok := msg.(*jsonrpc.Response); ok {
				return p.clientW.WriteMessage(replaced)
			}
		}
		p.logger.Warn("discarding undecodable modified response", zap.String("tool", call.tool))
	}
	return p.clientW.WriteMessage(resp)
}
