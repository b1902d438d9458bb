package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/app"
	"github.com/mcp-defender/mcp-defender/internal/infra/telemetry"
)

func main() {
	root := &cobra.Command{
		Use:           "mcp-defender",
		Short:         "Security interception proxy for MCP servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newProxyCommand())
	root.AddCommand(newServeCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newProxyCommand() *cobra.Command {
	cfg := app.LoadProxyConfig()

	cmd := &cobra.Command{
		Use:   "proxy -- <command> [args...]",
		Short: "Wrap an MCP server command, intercepting its stdio",
		Long: "Spawns the given MCP server command and relays newline-delimited\n" +
			"JSON-RPC between the calling application and the server, verifying\n" +
			"tool calls against the decision service along the way.",
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			applyProxyFlagOverrides(cmd.Flags(), &cfg)

			logger, err := telemetry.NewLogger(telemetry.LoggerOptions{
				Name:  "mcp-defender-proxy",
				Dir:   cfg.LogDir,
				Debug: cfg.Debug,
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			ctx, cancel := signalAwareContext(cmd.Context())
			code := app.RunProxy(ctx, cfg, args, logger)
			cancel()
			_ = logger.Sync()
			os.Exit(code)
		},
	}

	flags := cmd.Flags()
	flags.String("app-name", cfg.AppName, "name of the calling application")
	flags.String("server-name", cfg.ServerName, "label for the target server")
	flags.String("service-url", cfg.ServiceURL, "decision service base URL")
	flags.String("log-dir", cfg.LogDir, "directory for the proxy log file")
	flags.Bool("discover", cfg.Discover, "run tool discovery and exit")
	flags.Bool("debug", cfg.Debug, "enable debug logging")
	return cmd
}

func applyProxyFlagOverrides(flags *pflag.FlagSet, cfg *app.ProxyConfig) {
	if flags.Changed("app-name") {
		cfg.AppName, _ = flags.GetString("app-name")
	}
	if flags.Changed("server-name") {
		cfg.ServerName, _ = flags.GetString("server-name")
	}
	if flags.Changed("service-url") {
		cfg.ServiceURL, _ = flags.GetString("service-url")
	}
	if flags.Changed("log-dir") {
		cfg.LogDir, _ = flags.GetString("log-dir")
	}
	if flags.Changed("discover") {
		cfg.Discover, _ = flags.GetBool("discover")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
}

func newServeCommand() *cobra.Command {
	cfg := app.LoadServeConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the loopback decision service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := telemetry.NewLogger(telemetry.LoggerOptions{
				Name:  "mcp-defender-serve",
				Dir:   cfg.LogDir,
				Debug: cfg.Debug,
			})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			if err := app.RunServe(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("decision service failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.ListenAddress, "listen", cfg.ListenAddress, "listen address")
	flags.StringVar(&cfg.PolicyFile, "policy-file", cfg.PolicyFile, "signature policy file, hot reloaded on change")
	flags.StringVar(&cfg.InventoryFile, "inventory-file", cfg.InventoryFile, "bbolt database for registered tools")
	flags.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for the service log file")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	return cmd
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
