package proxy

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
	"github.com/mcp-defender/mcp-defender/internal/infra/augment"
)

// handleClientMessage dispatches one message read from the client stream.
// Anything that is not an initialize, tools/list, or tools/call request
// passes through to the server untouched, responses and notifications
// included.
func (p *Proxy) handleClientMessage(ctx context.Context, msg jsonrpc.Message) error {
	req, ok := msg.(*jsonrpc.Request)
	if !ok || !req.ID.IsValid() {
		return p.serverW.WriteMessage(msg)
	}
	switch req.Method {
	case domain.MethodInitialize:
		p.tracker.TrackInitialize(req.ID)
		return p.serverW.WriteMessage(req)
	case domain.MethodToolsList:
		if err := p.tracker.TrackDiscovery(req.ID); err != nil {
			p.logger.Warn("cannot track discovery request", zap.Error(err))
		}
		return p.serverW.WriteMessage(req)
	case domain.MethodToolsCall:
		return p.handleToolCall(ctx, req)
	default:
		return p.serverW.WriteMessage(req)
	}
}

func (p *Proxy) handleToolCall(ctx context.Context, req *jsonrpc.Request) error {
	params := map[string]any{}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			// Params in a shape we cannot read are not ours to judge.
			p.logger.Warn("unreadable tools/call params, forwarding as-is", zap.Error(err))
			return p.serverW.WriteMessage(req)
		}
	}
	tool, _ := params["name"].(string)
	server := p.tracker.Server()

	// The verifier sees the request exactly as the client sent it, declared
	// intent included.
	wire, err := jsonrpc.EncodeMessage(req)
	if err != nil {
		return p.serverW.WriteMessage(req)
	}
	outcome := p.verifier.VerifyRequest(ctx, wire, tool, server)

	if outcome.Blocked {
		p.logger.Info("blocked tool call",
			zap.String("tool", tool),
			zap.String("reason", outcome.Reason))
		blocked, err := buildBlockedResponse(req.ID, tool, outcome.Reason)
		if err != nil {
			return err
		}
		return p.clientW.WriteMessage(blocked)
	}

	forward := req
	if outcome.Modified && len(outcome.Message) > 0 {
		if replaced, ok := p.decodeModifiedRequest(outcome.Message); ok {
			forward = replaced
			params = map[string]any{}
			if len(forward.Params) > 0 {
				if err := json.Unmarshal(forward.Params, &params); err != nil {
					params = nil
				}
			}
		}
	}

	// The intent argument exists for the verifier alone. It is removed
	// whenever the key is present, whatever its value and whatever the
	// verdict, so servers never see arguments their schemas did not
	// declare.
	if args, ok := params["arguments"].(map[string]any); ok {
		stripped, intent, present := augment.StripIntent(args)
		if present {
			if intent != "" {
				p.logger.Debug("stripped declared intent",
					zap.String("tool", tool),
					zap.String("intent", intent))
			}
			params["arguments"] = stripped
			rebuilt, err := json.Marshal(params)
			if err == nil {
				forward = &jsonrpc.Request{ID: forward.ID, Method: forward.Method, Params: rebuilt}
			}
		}
	}

	if err := p.tracker.TrackCall(forward.ID, tool); err != nil {
		p.logger.Warn("cannot track tool call", zap.Error(err))
	}
	return p.serverW.WriteMessage(forward)
}

// decodeModifiedRequest parses a verifier-substituted message, accepting it
// only when it is still a request. Anything else keeps the original.
func (p *Proxy) decodeModifiedRequest(raw json.RawMessage) (*jsonrpc.Request, bool) {
	msg, err := jsonrpc.DecodeMessage(raw)
	if err != nil {
		p.logger.Warn("discarding undecodable modified request", zap.Error(err))
		return nil, false
	}
	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		p.logger.Warn("modified message is not a request, keeping original")
		return nil, false
	}
	return req, true
}
