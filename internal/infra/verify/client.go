// Package verify speaks the loopback decision-service protocol: it submits
// intercepted messages for a verdict and registers discovered tools.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    domain.Metrics
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
	// Metrics, when non-nil, receives one observation per verification
	// round trip, failed-open ones included.
	Metrics domain.Metrics
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = domain.DefaultServiceURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultVerifyTimeoutSeconds * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("verify"),
		metrics:    opts.Metrics,
	}
}

// verifyPayload is the wire shape of a verification request.
type verifyPayload struct {
	Message  json.RawMessage   `json:"message"`
	ToolName string            `json:"toolName"`
	Server   domain.ServerInfo `json:"serverInfo"`
}

// verifyReply is the wire shape of a verdict. An empty body decodes to the
// zero value, which is an allowing verdict.
type verifyReply struct {
	Blocked  bool            `json:"blocked"`
	Reason   string          `json:"reason,omitempty"`
	Modified bool            `json:"modified,omitempty"`
	Message  json.RawMessage `json:"message,omitempty"`
}

type registerPayload struct {
	Tools      []domain.ToolDescriptor `json:"tools"`
	Server     domain.ServerInfo       `json:"serverInfo"`
	AppName    string                  `json:"appName"`
	ServerName string                  `json:"serverName"`
}

// VerifyRequest asks for a verdict on a client→server tool call. Service
// failure fails open: the returned outcome allows the call, and the failure
// goes to diagnostics only. Protecting the application must never make it
// unusable.
func (c *Client) VerifyRequest(ctx context.Context, message json.RawMessage, toolName string, server domain.ServerInfo) domain.VerificationOutcome {
	return c.verify(ctx, domain.VerifyFlowRequest, "/verify/request", message, toolName, server)
}

// VerifyResponse asks for a verdict on a server→client tool result, with
// the same fail-open semantics as VerifyRequest.
func (c *Client) VerifyResponse(ctx context.Context, message json.RawMessage, toolName string, server domain.ServerInfo) domain.VerificationOutcome {
	return c.verify(ctx, domain.VerifyFlowResponse, "/verify/response", message, toolName, server)
}

func (c *Client) verify(ctx context.Context, flow domain.VerifyFlow, path string, message json.RawMessage, toolName string, server domain.ServerInfo) domain.VerificationOutcome {
	start := time.Now()
	reply, err := c.post(ctx, path, verifyPayload{
		Message:  message,
		ToolName: toolName,
		Server:   server,
	})
	if err != nil {
		c.record(flow, domain.VerifyOutcomeFailedOpen, start)
		c.logger.Warn("verification failed open",
			zap.String("path", path),
			zap.String("tool", toolName),
			zap.Error(err),
		)
		return domain.VerificationOutcome{}
	}

	outcome := domain.VerifyOutcomeAllowed
	switch {
	case reply.Blocked:
		outcome = domain.VerifyOutcomeBlocked
	case reply.Modified:
		outcome = domain.VerifyOutcomeModified
	}
	c.record(flow, outcome, start)

	return domain.VerificationOutcome{
		Blocked:  reply.Blocked,
		Reason:   reply.Reason,
		Modified: reply.Modified,
		Message:  reply.Message,
	}
}

func (c *Client) record(flow domain.VerifyFlow, outcome domain.VerifyOutcomeLabel, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordVerification(flow, "", outcome, time.Since(start))
}

// RegisterTools submits the original, unaugmented descriptors for auditing.
// Unlike verification this surfaces failure: discovery-only runs exit
// non-zero when registration fails.
func (c *Client) RegisterTools(ctx context.Context, tools []domain.ToolDescriptor, server domain.ServerInfo) error {
	_, err := c.post(ctx, "/register-tools", registerPayload{
		Tools:      tools,
		Server:     server,
		AppName:    server.AppName,
		ServerName: server.Name,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRegistrationFailed, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (verifyReply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return verifyReply{}, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return verifyReply{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return verifyReply{}, fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return verifyReply{}, fmt.Errorf("%w: status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, domain.DefaultMaxFrameSize))
	if err != nil {
		return verifyReply{}, fmt.Errorf("read reply: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		// Absence of a body is an empty-object success.
		return verifyReply{}, nil
	}

	var reply verifyReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return verifyReply{}, fmt.Errorf("%w: decode reply: %w", domain.ErrServiceUnavailable, err)
	}
	return reply, nil
}
