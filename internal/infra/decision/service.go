// Package decision implements the loopback HTTP service the proxy consults:
// request and response verification backed by the signature engine, plus the
// tool registration endpoint feeding the persistent inventory.
package decision

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mcp-defender/mcp-defender/internal/domain"
	"github.com/mcp-defender/mcp-defender/internal/infra/inventory"
	"github.com/mcp-defender/mcp-defender/internal/infra/signature"
)

// Inventory is the persistence surface used by tool registration.
type Inventory interface {
	Put(server domain.ServerInfo, tools []domain.ToolDescriptor) (inventory.Record, error)
	List() ([]inventory.Record, error)
}

type ServiceOptions struct {
	Engine    *signature.Engine
	Inventory Inventory
	Metrics   domain.Metrics
	Logger    *zap.Logger
	// Registry serves /metrics; nil selects the default gatherer.
	Registry prometheus.Gatherer
}

type Service struct {
	engine    *signature.Engine
	inventory Inventory
	metrics   domain.Metrics
	logger    *zap.Logger
	registry  prometheus.Gatherer
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.DefaultGatherer
	}
	return &Service{
		engine:    opts.Engine,
		inventory: opts.Inventory,
		metrics:   opts.Metrics,
		logger:    logger.Named("decision"),
		registry:  registry,
	}
}

func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/verify/request", s.handleVerify(domain.VerifyFlowRequest))
	r.Post("/verify/response", s.handleVerify(domain.VerifyFlowResponse))
	r.Post("/register-tools", s.handleRegisterTools)
	r.Get("/tools", s.handleListTools)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// Wire shapes shared with the proxy-side client.
type verifyPayload struct {
	Message  json.RawMessage   `json:"message"`
	ToolName string            `json:"toolName"`
	Server   domain.ServerInfo `json:"serverInfo"`
}

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

func (s *Service) handleVerify(flow domain.VerifyFlow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var payload verifyPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid verify payload", http.StatusBadRequest)
			return
		}

		text, tool := extractScanText(flow, payload.Message)
		if tool == "" {
			tool = payload.ToolName
		}

		result := s.engine.Scan(domain.ScanInput{
			Text:   text,
			Tool:   tool,
			Server: payload.Server,
		})

		outcome := domain.VerifyOutcomeAllowed
		fired := ""
		if !result.Verdict.Allowed {
			outcome = domain.VerifyOutcomeBlocked
			if len(result.Fired) > 0 {
				fired = result.Fired[0]
			}
			s.logger.Info("verification denied",
				zap.String("flow", string(flow)),
				zap.String("tool", tool),
				zap.Strings("signatures", result.Fired),
				zap.String("reason", result.Verdict.Reason))
		}
		if s.metrics != nil {
			s.metrics.RecordVerification(flow, fired, outcome, time.Since(start))
		}

		writeJSON(w, http.StatusOK, verifyReply{
			Blocked: !result.Verdict.Allowed,
			Reason:  result.Verdict.Reason,
		})
	}
}

func (s *Service) handleRegisterTools(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid register payload", http.StatusBadRequest)
		return
	}
	server := payload.Server
	if payload.AppName != "" {
		server.AppName = payload.AppName
	}
	if payload.ServerName != "" {
		server.Name = payload.ServerName
	}

	if s.inventory != nil {
		if _, err := s.inventory.Put(server, payload.Tools); err != nil {
			s.logger.Error("inventory write failed",
				zap.String("server", server.Name),
				zap.Error(err))
			http.Error(w, "inventory write failed", http.StatusInternalServerError)
			return
		}
	}
	if s.metrics != nil {
		s.metrics.RecordRegisteredTools(server.Name, len(payload.Tools))
	}
	s.logger.Info("registered tools",
		zap.String("app", server.AppName),
		zap.String("server", server.Name),
		zap.Int("tools", len(payload.Tools)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleListTools(w http.ResponseWriter, _ *http.Request) {
	if s.inventory == nil {
		writeJSON(w, http.StatusOK, []inventory.Record{})
		return
	}
	records, err := s.inventory.List()
	if err != nil {
		http.Error(w, "inventory read failed", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []inventory.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
