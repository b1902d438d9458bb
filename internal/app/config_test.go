package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

func TestLoadProxyConfig_Defaults(t *testing.T) {
	cfg := LoadProxyConfig()
	assert.Equal(t, domain.DefaultAppName, cfg.AppName)
	assert.Equal(t, domain.DefaultServiceURL, cfg.ServiceURL)
	assert.False(t, cfg.Discover)
}

func TestLoadProxyConfig_Environment(t *testing.T) {
	t.Setenv("MCP_DEFENDER_APP_NAME", "cursor")
	t.Setenv("MCP_DEFENDER_SERVER_NAME", "filesystem")
	t.Setenv("MCP_DEFENDER_SERVICE_URL", "http://127.0.0.1:9999")
	t.Setenv("MCP_DEFENDER_DISCOVER", "true")
	t.Setenv("MCP_DEFENDER_LOG_DIR", "/tmp/defender-logs")

	cfg := LoadProxyConfig()
	assert.Equal(t, "cursor", cfg.AppName)
	assert.Equal(t, "filesystem", cfg.ServerName)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.ServiceURL)
	assert.True(t, cfg.Discover)
	assert.Equal(t, "/tmp/defender-logs", cfg.LogDir)
}

func TestLoadServeConfig(t *testing.T) {
	t.Setenv("MCP_DEFENDER_LISTEN_ADDRESS", "127.0.0.1:28999")
	t.Setenv("MCP_DEFENDER_POLICY_FILE", "/etc/defender/policy.yaml")

	cfg := LoadServeConfig()
	assert.Equal(t, "127.0.0.1:28999", cfg.ListenAddress)
	assert.Equal(t, "/etc/defender/policy.yaml", cfg.PolicyFile)
	assert.Empty(t, cfg.InventoryFile)
}
