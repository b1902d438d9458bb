package proxy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

const registrationTimeout = 30 * time.Second

type registrationJob struct {
	tools  []domain.ToolDescriptor
	server domain.ServerInfo
}

// registrar pushes discovered tool inventories to the decision service off
// the message path. The queue is bounded: when it is full the newest
// snapshot is dropped with a warning rather than stalling the proxy, since
// a later discovery will carry a fresher inventory anyway.
type registrar struct {
	verifier Verifier
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan registrationJob
	wg     sync.WaitGroup
}

func newRegistrar(verifier Verifier, queueSize int, logger *zap.Logger) *registrar {
	if queueSize <= 0 {
		queueSize = domain.DefaultRegistrationQueueSize
	}
	r := &registrar{
		verifier: verifier,
		logger:   logger.Named("registrar"),
		jobs:     make(chan registrationJob, queueSize),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

func (r *registrar) worker() {
	defer r.wg.Done()
	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), registrationTimeout)
		if err := r.verifier.RegisterTools(ctx, job.tools, job.server); err != nil {
			r.logger.Warn("tool registration failed",
				zap.String("server", job.server.Name),
				zap.Int("tools", len(job.tools)),
				zap.Error(err))
		} else {
			r.logger.Debug("registered tools",
				zap.String("server", job.server.Name),
				zap.Int("tools", len(job.tools)))
		}
		cancel()
	}
}

// enqueue hands a snapshot to the background worker, dropping it when the
// queue is full.
func (r *registrar) enqueue(tools []domain.ToolDescriptor, server domain.ServerInfo) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.jobs <- registrationJob{tools: tools, server: server}:
	default:
		r.logger.Warn("registration queue full, dropping snapshot",
			zap.String("server", server.Name),
			zap.Int("tools", len(tools)))
	}
}

func (r *registrar) close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
