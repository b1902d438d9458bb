package signature

import "encoding/json"

// Canonicalize reduces arbitrary tool input to a deterministic searchable
// string. Strings pass through untouched; structured values are serialized
// with sorted object keys (encoding/json map ordering), so equal inputs
// always produce equal text.
func Canonicalize(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []byte:
		return canonicalizeRaw(typed)
	case json.RawMessage:
		return canonicalizeRaw(typed)
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func canonicalizeRaw(raw []byte) string {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Not JSON: match against the raw bytes rather than dropping them.
		return string(raw)
	}
	out, err := json.Marshal(decoded)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
