package app

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

const envPrefix = "MCP_DEFENDER"

// ProxyConfig configures one interception session. Everything comes from the
// environment so host applications can set it in their MCP server entry
// without touching the command line they already have.
type ProxyConfig struct {
	// AppName identifies the calling application (cursor, claude, ...).
	AppName string
	// ServerName labels the target server until its initialize response
	// supplies the authoritative name.
	ServerName string
	// ServiceURL locates the decision service.
	ServiceURL string
	// LogDir adds a file sink next to stderr when set.
	LogDir string
	// Discover switches the proxy into the one-shot inventory run.
	Discover bool
	Debug    bool
}

func LoadProxyConfig() ProxyConfig {
	v := newEnvViper()
	v.SetDefault("app_name", domain.DefaultAppName)
	v.SetDefault("server_name", "")
	v.SetDefault("service_url", domain.DefaultServiceURL)
	v.SetDefault("log_dir", "")
	v.SetDefault("discover", false)
	v.SetDefault("debug", false)

	return ProxyConfig{
		AppName:    v.GetString("app_name"),
		ServerName: v.GetString("server_name"),
		ServiceURL: v.GetString("service_url"),
		LogDir:     v.GetString("log_dir"),
		Discover:   v.GetBool("discover"),
		Debug:      v.GetBool("debug"),
	}
}

// ServeConfig configures the decision service process.
type ServeConfig struct {
	ListenAddress string
	// PolicyFile points at the signature policy; changes are hot reloaded.
	PolicyFile string
	// InventoryFile is the bbolt database holding registered tools.
	InventoryFile string
	LogDir        string
	Debug         bool
}

func LoadServeConfig() ServeConfig {
	v := newEnvViper()
	v.SetDefault("listen_address", domain.DefaultServiceListenAddress)
	v.SetDefault("policy_file", "")
	v.SetDefault("inventory_file", "")
	v.SetDefault("log_dir", "")
	v.SetDefault("debug", false)

	return ServeConfig{
		ListenAddress: v.GetString("listen_address"),
		PolicyFile:    v.GetString("policy_file"),
		InventoryFile: v.GetString("inventory_file"),
		LogDir:        v.GetString("log_dir"),
		Debug:         v.GetBool("debug"),
	}
}

func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
