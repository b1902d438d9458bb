package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
	"github.com/mcp-defender/mcp-defender/internal/infra/framing"
)

// Verifier is the decision-service surface the proxy depends on. Request and
// response verification fail open inside the implementation; tool
// registration surfaces its error so callers can decide how hard to fail.
type Verifier interface {
	VerifyRequest(ctx context.Context, message json.RawMessage, tool string, server domain.ServerInfo) domain.VerificationOutcome
	VerifyResponse(ctx context.Context, message json.RawMessage, tool string, server domain.ServerInfo) domain.VerificationOutcome
	RegisterTools(ctx context.Context, tools []domain.ToolDescriptor, server domain.ServerInfo) error
}

// Options configures a Proxy.
type Options struct {
	Verifier Verifier
	Server   domain.ServerInfo
	Logger   *zap.Logger
	// MaxFrameSize bounds a single newline-delimited message in either
	// direction. Zero selects the default.
	MaxFrameSize int
	// QueueSize bounds the background registration queue. Zero selects the
	// default.
	QueueSize int
	// SynchronousRegistration makes discovery registration block and report
	// its error instead of queueing. Used by discovery-only runs.
	SynchronousRegistration bool
}

// Proxy sits between an MCP client on one stream pair and the target server
// on another, relaying newline-delimited JSON-RPC while intercepting tool
// discovery and tool calls. Messages it does not recognize pass through
// unchanged.
type Proxy struct {
	verifier  Verifier
	tracker   *Tracker
	logger    *zap.Logger
	registrar *registrar
	maxFrame  int
	syncReg   bool

	// clientW carries frames toward the client, serverW toward the target
	// server. Each framing.Writer serializes concurrent writers, so a
	// blocked verdict emitted by the server pump never interleaves with a
	// passthrough frame from the client pump.
	clientW *framing.Writer
	serverW *framing.Writer

	regErr   chan error
	initSeen chan struct{}
	initOnce sync.Once
}

func New(opts Options) *Proxy {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFrame := opts.MaxFrameSize
	if maxFrame <= 0 {
		maxFrame = domain.DefaultMaxFrameSize
	}
	p := &Proxy{
		verifier: opts.Verifier,
		tracker:  NewTracker(opts.Server),
		logger:   logger.Named("proxy"),
		maxFrame: maxFrame,
		syncReg:  opts.SynchronousRegistration,
		regErr:   make(chan error, 1),
		initSeen: make(chan struct{}),
	}
	p.registrar = newRegistrar(opts.Verifier, opts.QueueSize, p.logger)
	return p
}

// Run pumps both directions until either stream reaches EOF or the context
// is canceled. clientIn/clientOut face the MCP client; serverIn/serverOut
// face the target server process. The returned error is nil on orderly
// shutdown.
func (p *Proxy) Run(ctx context.Context, clientIn io.Reader, clientOut io.Writer, serverIn io.Writer, serverOut io.Reader) error {
	p.clientW = framing.NewWriter(clientOut, p.maxFrame)
	p.serverW = framing.NewWriter(serverIn, p.maxFrame)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer p.registrar.close()

	errs := make(chan error, 2)
	go func() {
		errs <- p.pump(ctx, clientIn, p.handleClientMessage)
		// Client hangup means the session is over; unblock the other pump.
		cancel()
	}()
	go func() {
		errs <- p.pump(ctx, serverOut, p.handleServerMessage)
		cancel()
	}()

	// Either hangup ends the session. The surviving pump may be blocked in
	// a read that only process exit will release, so do not wait for it.
	err := <-errs
	if pending := p.tracker.PendingCalls(); pending > 0 {
		p.logger.Debug("shutting down with unresolved tool calls", zap.Int("pending", pending))
	}
	return err
}

// pump reads one stream chunk-wise, feeds the frame decoder, and dispatches
// every complete message. Malformed frames are dropped with a warning;
// decoding resumes at the next newline.
func (p *Proxy) pump(ctx context.Context, r io.Reader, handle func(context.Context, jsonrpc.Message) error) error {
	dec := framing.NewDecoder(p.maxFrame)
	buf := make([]byte, 64*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				msg, err := dec.Next()
				if err != nil {
					var frameErr *framing.FrameError
					if errors.As(err, &frameErr) {
						p.logger.Warn("dropping undecodable frame",
							zap.Int("bytes", len(frameErr.Unit)),
							zap.Error(frameErr.Err))
						continue
					}
					return err
				}
				if msg == nil {
					break
				}
				if err := handle(ctx, msg); err != nil {
					return err
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrClosedPipe) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return readErr
		}
	}
}

// RegistrationResult reports the outcome of a synchronous discovery
// registration, buffered so the server pump never blocks on it.
func (p *Proxy) RegistrationResult() <-chan error {
	return p.regErr
}

func (p *Proxy) reportRegistration(err error) {
	select {
	case p.regErr <- err:
	default:
	}
}
