package signature

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

// Result is the aggregate of every signature's verdict for one input.
type Result struct {
	Verdict domain.Verdict
	// Fired lists the ids of signatures that denied, in evaluation order.
	Fired []string
}

// Engine runs every enabled signature against an input and aggregates: the
// input is denied if any signature denies, with all denial reasons joined.
type Engine struct {
	logger *zap.Logger

	mu         sync.RWMutex
	signatures []domain.Signature
}

func NewEngine(signatures []domain.Signature, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:     logger.Named("signature"),
		signatures: append([]domain.Signature(nil), signatures...),
	}
}

// Update replaces the enabled signature set, e.g. after a policy reload.
func (e *Engine) Update(signatures []domain.Signature) {
	copied := append([]domain.Signature(nil), signatures...)
	e.mu.Lock()
	e.signatures = copied
	e.mu.Unlock()
}

// Scan evaluates every signature against the input.
func (e *Engine) Scan(input domain.ScanInput) Result {
	e.mu.RLock()
	signatures := e.signatures
	e.mu.RUnlock()

	var reasons []string
	var fired []string
	for _, sig := range signatures {
		verdict := safeDetect(sig, input)
		if verdict.Allowed {
			continue
		}
		reason := verdict.Reason
		if strings.TrimSpace(reason) == "" {
			reason = fmt.Sprintf("%s denied the input", sig.Name())
		}
		reasons = append(reasons, reason)
		fired = append(fired, sig.ID())
		e.logger.Debug("signature denied input",
			zap.String("signature", sig.ID()),
			zap.String("tool", input.Tool),
			zap.String("reason", reason),
		)
	}

	if len(reasons) == 0 {
		return Result{Verdict: domain.Allow()}
	}
	return Result{
		Verdict: domain.Deny(strings.Join(reasons, "; ")),
		Fired:   fired,
	}
}

// safeDetect converts a panicking detector into a denial for its own check.
// A broken detector fails closed, never silently passes.
func safeDetect(sig domain.Signature, input domain.ScanInput) (verdict domain.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = domain.Deny(fmt.Sprintf("%s failed: %v", sig.Name(), r))
		}
	}()
	return sig.Detect(input)
}
