package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/mcp-defender/mcp-defender/internal/domain"
	"github.com/mcp-defender/mcp-defender/internal/infra/framing"
)

const (
	discoveryProtocolVersion = "2025-06-18"
	discoveryTimeout         = 60 * time.Second
)

// Discover drives a one-shot inventory run against the target server: the
// proxy plays the client itself, performing the initialize handshake and a
// single tools/list, then registers the discovered tools synchronously.
// No external client is involved, so the run is scriptable from CI and
// installers. A nil return means the inventory reached the decision
// service.
func (p *Proxy) Discover(ctx context.Context, serverIn io.Writer, serverOut io.Reader) error {
	p.clientW = framing.NewWriter(io.Discard, p.maxFrame)
	p.serverW = framing.NewWriter(serverIn, p.maxFrame)
	p.syncReg = true

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	defer p.registrar.close()

	pumpDone := make(chan error, 1)
	go func() { pumpDone <- p.pump(ctx, serverOut, p.handleServerMessage) }()

	initID, err := jsonrpc.MakeID("defender-init")
	if err != nil {
		return err
	}
	p.tracker.TrackInitialize(initID)
	initParams, err := json.Marshal(map[string]any{
		"protocolVersion": discoveryProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    p.tracker.Server().AppName,
			"version": "discovery",
		},
	})
	if err != nil {
		return err
	}
	if err := p.serverW.WriteMessage(&jsonrpc.Request{ID: initID, Method: domain.MethodInitialize, Params: initParams}); err != nil {
		return fmt.Errorf("send initialize: %w", err)
	}

	select {
	case <-p.initSeen:
	case err := <-pumpDone:
		return fmt.Errorf("server closed before initialize completed: %w", errOr(err, io.ErrUnexpectedEOF))
	case <-ctx.Done():
		return fmt.Errorf("initialize: %w", ctx.Err())
	}

	if err := p.serverW.WriteMessage(&jsonrpc.Request{Method: "notifications/initialized"}); err != nil {
		return fmt.Errorf("send initialized: %w", err)
	}

	listID, err := jsonrpc.MakeID("defender-tools")
	if err != nil {
		return err
	}
	if err := p.tracker.TrackDiscovery(listID); err != nil {
		return err
	}
	if err := p.serverW.WriteMessage(&jsonrpc.Request{ID: listID, Method: domain.MethodToolsList}); err != nil {
		return fmt.Errorf("send tools/list: %w", err)
	}

	select {
	case err := <-p.regErr:
		if err != nil {
			return fmt.Errorf("register discovered tools: %w", err)
		}
		return nil
	case err := <-pumpDone:
		return fmt.Errorf("server closed before discovery completed: %w", errOr(err, io.ErrUnexpectedEOF))
	case <-ctx.Done():
		return fmt.Errorf("discovery: %w", ctx.Err())
	}
}

func errOr(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}
