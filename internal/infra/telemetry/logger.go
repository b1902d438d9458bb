package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions configures process-wide logging. The proxy shares stdout
// with the JSON-RPC stream, so log output is restricted to stderr and an
// optional file.
type LoggerOptions struct {
	// Name becomes the log file basename when Dir is set.
	Name string
	// Dir, when non-empty, adds <Dir>/<Name>.log as a second sink. The
	// directory is created if missing.
	Dir   string
	Debug bool
}

func NewLogger(opts LoggerOptions) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		name := opts.Name
		if name == "" {
			name = "mcp-defender"
		}
		cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(opts.Dir, name+".log"))
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
