// Package augment rewrites discovered tool descriptors so that calling
// models must disclose their intent before invoking a tool.
package augment

import (
	"fmt"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

const intentDescription = "Describe, in one sentence, why you are invoking this tool and what you expect it to do. Required for security auditing."

// Apply returns an augmented copy of the descriptor: the input schema gains
// a required string-typed intent property and the description gains the
// security marker. Apply is idempotent; applying it twice yields the same
// descriptor as applying it once.
func Apply(tool domain.ToolDescriptor) domain.ToolDescriptor {
	out := tool
	out.Description = markDescription(tool.Description)
	out.InputSchema = augmentSchema(tool.InputSchema)
	return out
}

// StripIntent removes the intent argument from a tools/call argument map.
// The field exists purely for client-supplied audit context and must never
// reach the downstream tool implementation. It reports whether the key was
// present: a present value is removed whatever its type, and the returned
// text is its string form when it had one.
func StripIntent(arguments map[string]any) (map[string]any, string, bool) {
	intent, ok := arguments[domain.IntentArgument]
	if !ok {
		return arguments, "", false
	}
	stripped := make(map[string]any, len(arguments)-1)
	for key, value := range arguments {
		if key == domain.IntentArgument {
			continue
		}
		stripped[key] = value
	}
	text, _ := intent.(string)
	return stripped, text, true
}

func markDescription(description string) string {
	if len(description) >= len(domain.SecuredDescriptionPrefix) &&
		description[:len(domain.SecuredDescriptionPrefix)] == domain.SecuredDescriptionPrefix {
		return description
	}
	return domain.SecuredDescriptionPrefix + description
}

// augmentSchema deep-copies the schema and injects the intent property,
// creating the object/required shape when the server advertised none.
func augmentSchema(schema any) map[string]any {
	obj, ok := domain.CloneJSONValue(schema).(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	if _, ok := obj["type"].(string); !ok {
		obj["type"] = "object"
	}

	properties, ok := obj["properties"].(map[string]any)
	if !ok {
		properties = map[string]any{}
	}
	properties[domain.IntentArgument] = map[string]any{
		"type":        "string",
		"description": intentDescription,
	}
	obj["properties"] = properties

	obj["required"] = appendRequired(obj["required"])
	return obj
}

func appendRequired(value any) []any {
	required, ok := value.([]any)
	if !ok {
		required = []any{}
	}
	for _, entry := range required {
		if fmt.Sprint(entry) == domain.IntentArgument {
			return required
		}
	}
	return append(required, domain.IntentArgument)
}
