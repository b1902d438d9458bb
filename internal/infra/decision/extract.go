package decision

import (
	"encoding/json"

	"github.com/mcp-defender/mcp-defender/internal/domain"
	"github.com/mcp-defender/mcp-defender/internal/infra/signature"
)

// extractScanText pulls the part of a JSON-RPC message the signatures should
// see. For a request that is the tool arguments, declared intent included;
// for a response it is the whole result. A message that does not parse is
// scanned in raw canonical form rather than skipped.
func extractScanText(flow domain.VerifyFlow, message json.RawMessage) (text, tool string) {
	switch flow {
	case domain.VerifyFlowRequest:
		var req struct {
			Params struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"params"`
		}
		if err := json.Unmarshal(message, &req); err != nil {
			return signature.Canonicalize(message), ""
		}
		if len(req.Params.Arguments) == 0 {
			return "", req.Params.Name
		}
		return signature.Canonicalize(req.Params.Arguments), req.Params.Name
	case domain.VerifyFlowResponse:
		var resp struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(message, &resp); err != nil || len(resp.Result) == 0 {
			return signature.Canonicalize(message), ""
		}
		return signature.Canonicalize(resp.Result), ""
	default:
		return signature.Canonicalize(message), ""
	}
}
