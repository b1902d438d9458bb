package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/infra/decision"
	"github.com/mcp-defender/mcp-defender/internal/infra/inventory"
	"github.com/mcp-defender/mcp-defender/internal/infra/signature"
	"github.com/mcp-defender/mcp-defender/internal/infra/telemetry"
)

// RunServe assembles and runs the decision service: signature engine with
// hot-reloaded policy, optional persistent inventory, metrics, and the HTTP
// surface. It blocks until the context is canceled.
func RunServe(ctx context.Context, cfg ServeConfig, logger *zap.Logger) error {
	policy, err := decision.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return err
	}
	engine := signature.NewEngine(signature.Defaults(policy), logger)
	if err := decision.WatchPolicy(ctx, cfg.PolicyFile, engine, logger); err != nil {
		logger.Warn("policy hot reload unavailable", zap.Error(err))
	}

	var store *inventory.Store
	if cfg.InventoryFile != "" {
		store, err = inventory.OpenStore(cfg.InventoryFile)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	metrics := telemetry.NewPrometheusMetrics(nil)

	opts := decision.ServiceOptions{
		Engine:  engine,
		Metrics: metrics,
		Logger:  logger,
	}
	if store != nil {
		opts.Inventory = store
	}
	service := decision.NewService(opts)

	return decision.Serve(ctx, cfg.ListenAddress, service.Router(), logger)
}
