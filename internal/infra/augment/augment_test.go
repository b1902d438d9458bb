package augment

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

func TestApply_InjectsIntentProperty(t *testing.T) {
	tool := domain.ToolDescriptor{
		Name:        "read_file",
		Description: "Read a file from disk",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
			"required":   []any{"path"},
		},
	}

	got := Apply(tool)

	assert.Equal(t, "read_file", got.Name, "name must stay unchanged")
	assert.Equal(t, domain.SecuredDescriptionPrefix+"Read a file from disk", got.Description)

	schema, ok := got.InputSchema.(map[string]any)
	require.True(t, ok)
	properties := schema["properties"].(map[string]any)
	require.Contains(t, properties, domain.IntentArgument)
	intent := properties[domain.IntentArgument].(map[string]any)
	assert.Equal(t, "string", intent["type"])
	assert.NotEmpty(t, intent["description"])
	assert.Equal(t, []any{"path", domain.IntentArgument}, schema["required"])

	// The original descriptor must remain untouched for registration.
	original := tool.InputSchema.(map[string]any)
	assert.NotContains(t, original["properties"].(map[string]any), domain.IntentArgument)
}

func TestApply_CreatesMissingSchema(t *testing.T) {
	got := Apply(domain.ToolDescriptor{Name: "ping"})

	schema, ok := got.InputSchema.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["properties"].(map[string]any), domain.IntentArgument)
	assert.Equal(t, []any{domain.IntentArgument}, schema["required"])
}

func TestApply_Idempotent(t *testing.T) {
	tool := domain.ToolDescriptor{
		Name:        "read_file",
		Description: "Read a file",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []any{},
		},
	}

	once := Apply(tool)
	twice := Apply(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("double augmentation changed descriptor (-once +twice):\n%s", diff)
	}
	assert.Equal(t, once.Description, twice.Description, "marker must not duplicate")
}

func TestApply_AugmentedSchemaIsValidJSONSchema(t *testing.T) {
	got := Apply(domain.ToolDescriptor{
		Name: "search",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []any{"query"},
		},
	})

	raw, err := json.Marshal(got.InputSchema)
	require.NoError(t, err)

	var schema jsonschema.Schema
	require.NoError(t, json.Unmarshal(raw, &schema))
	resolved, err := schema.Resolve(nil)
	require.NoError(t, err)

	var payload any
	require.NoError(t, json.Unmarshal([]byte(`{"query":"weather","user_intent":"look up the forecast"}`), &payload))
	require.NoError(t, resolved.Validate(payload))

	var missingIntent any
	require.NoError(t, json.Unmarshal([]byte(`{"query":"weather"}`), &missingIntent))
	assert.Error(t, resolved.Validate(missingIntent), "intent must be required")
}

func TestStripIntent(t *testing.T) {
	args := map[string]any{
		"path":                "/tmp/a",
		domain.IntentArgument: "reading scratch file",
	}

	stripped, intent, present := StripIntent(args)
	assert.True(t, present)
	assert.Equal(t, "reading scratch file", intent)
	assert.NotContains(t, stripped, domain.IntentArgument)
	assert.Equal(t, "/tmp/a", stripped["path"])

	// Absent intent returns the map untouched.
	plain := map[string]any{"path": "/tmp/a"}
	same, intent, present := StripIntent(plain)
	assert.False(t, present)
	assert.Empty(t, intent)
	assert.Equal(t, plain, same)
}

func TestStripIntent_RemovesRegardlessOfValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "empty string", value: ""},
		{name: "number", value: 42},
		{name: "null", value: nil},
		{name: "object", value: map[string]any{"nested": true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := map[string]any{
				"path":                "/tmp/a",
				domain.IntentArgument: tc.value,
			}
			stripped, intent, present := StripIntent(args)
			assert.True(t, present)
			assert.Empty(t, intent)
			assert.NotContains(t, stripped, domain.IntentArgument)
			assert.Equal(t, "/tmp/a", stripped["path"])
		})
	}
}
