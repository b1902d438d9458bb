package domain

import "encoding/json"

// ToolDescriptor is the proxy's transient copy of a tool advertised by the
// target server. The server owns the descriptor; the proxy holds it only for
// augmentation and registration.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}

// ServerInfo carries the connection context attached to every verification
// request: the calling application plus the target server's advertised
// identity from its initialize response.
type ServerInfo struct {
	AppName string `json:"appName,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// CloneJSONValue deep-copies a JSON-shaped value through a marshal round
// trip. A value that cannot round-trip yields nil.
func CloneJSONValue(value any) any {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
