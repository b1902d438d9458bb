package app

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
	"github.com/mcp-defender/mcp-defender/internal/infra/proxy"
	"github.com/mcp-defender/mcp-defender/internal/infra/supervise"
	"github.com/mcp-defender/mcp-defender/internal/infra/verify"
)

// RunProxy spawns the target server and relays stdio through the
// interception pipeline until either side hangs up. The returned code is
// what the process should exit with: the child's own exit code in proxy
// mode, 0 or 1 in discovery mode, 1 when the child cannot be spawned.
func RunProxy(ctx context.Context, cfg ProxyConfig, command []string, logger *zap.Logger) int {
	verifier := verify.NewClient(verify.Options{
		BaseURL: cfg.ServiceURL,
		Timeout: domain.DefaultVerifyTimeoutSeconds * time.Second,
		Logger:  logger,
	})

	supervisor := supervise.New(command, logger)
	if err := supervisor.Start(ctx); err != nil {
		logger.Error("cannot spawn target server", zap.Strings("command", command), zap.Error(err))
		return 1
	}

	p := proxy.New(proxy.Options{
		Verifier: verifier,
		Server: domain.ServerInfo{
			AppName: cfg.AppName,
			Name:    cfg.ServerName,
		},
		Logger: logger,
	})

	if cfg.Discover {
		return runDiscovery(ctx, p, supervisor, logger)
	}

	go supervisor.ForwardSignals(ctx)

	if err := p.Run(ctx, os.Stdin, os.Stdout, supervisor.Stdin(), supervisor.Stdout()); err != nil {
		logger.Warn("relay ended with error", zap.Error(err))
	}
	supervisor.Close()
	code := supervisor.Wait()
	logger.Info("target server exited", zap.Int("code", code))
	return code
}

func runDiscovery(ctx context.Context, p *proxy.Proxy, supervisor *supervise.Supervisor, logger *zap.Logger) int {
	err := p.Discover(ctx, supervisor.Stdin(), supervisor.Stdout())
	supervisor.Close()
	supervisor.Wait()
	if err != nil {
		logger.Error("discovery run failed", zap.Error(err))
		return 1
	}
	logger.Info("discovery run completed")
	return 0
}
