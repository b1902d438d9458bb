package proxy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

type blockingVerifier struct {
	started chan struct{}
	release chan struct{}
}

func (v *blockingVerifier) VerifyRequest(context.Context, json.RawMessage, string, domain.ServerInfo) domain.VerificationOutcome {
	return domain.VerificationOutcome{}
}

func (v *blockingVerifier) VerifyResponse(context.Context, json.RawMessage, string, domain.ServerInfo) domain.VerificationOutcome {
	return domain.VerificationOutcome{}
}

func (v *blockingVerifier) RegisterTools(context.Context, []domain.ToolDescriptor, domain.ServerInfo) error {
	select {
	case v.started <- struct{}{}:
	default:
	}
	<-v.release
	return nil
}

func TestRegistrar_FullQueueDropsWithoutBlocking(t *testing.T) {
	verifier := &blockingVerifier{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := newRegistrar(verifier, 1, zap.NewNop())
	t.Cleanup(func() {
		close(verifier.release)
		r.close()
	})

	server := domain.ServerInfo{AppName: "cursor", Name: "filesystem"}

	// First snapshot is taken by the worker, which then stalls inside
	// registration. Second fills the queue.
	r.enqueue([]domain.ToolDescriptor{{Name: "read_file"}}, server)
	select {
	case <-verifier.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the first snapshot")
	}
	r.enqueue([]domain.ToolDescriptor{{Name: "list_dir"}}, server)

	// Third must be dropped, not queued behind the stalled worker.
	done := make(chan struct{})
	go func() {
		r.enqueue([]domain.ToolDescriptor{{Name: "stat"}}, server)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
}

func TestRegistrar_EnqueueAfterCloseIsNoop(t *testing.T) {
	r := newRegistrar(&fakeVerifier{}, 1, zap.NewNop())
	r.close()

	require.NotPanics(t, func() {
		r.enqueue(nil, domain.ServerInfo{Name: "filesystem"})
	})
}
