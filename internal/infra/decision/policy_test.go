package decision

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
	"github.com/mcp-defender/mcp-defender/internal/infra/signature"
)

func TestWatchPolicy_ReloadsThresholdsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxInputChars: 10000\n"), 0o600))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	engine := signature.NewEngine(signature.Defaults(policy), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, WatchPolicy(ctx, path, engine, zap.NewNop()))

	input := domain.ScanInput{Text: strings.Repeat("a", 600), Tool: "read_file"}
	require.True(t, engine.Scan(input).Verdict.Allowed)

	// Tightening the input limit below the scanned size must take effect
	// without a restart.
	require.NoError(t, os.WriteFile(path, []byte("maxInputChars: 500\n"), 0o600))

	require.Eventually(t, func() bool {
		return !engine.Scan(input).Verdict.Allowed
	}, 5*time.Second, 50*time.Millisecond, "engine never picked up the reloaded policy")
}

func TestWatchPolicy_EmptyPathIsNoop(t *testing.T) {
	engine := signature.NewEngine(nil, zap.NewNop())
	require.NoError(t, WatchPolicy(context.Background(), "", engine, zap.NewNop()))
}
