package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

type PrometheusMetrics struct {
	verifyDuration  *prometheus.HistogramVec
	verifyTotal     *prometheus.CounterVec
	signatureFires  *prometheus.CounterVec
	registeredTools *prometheus.GaugeVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		verifyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "defender_verify_duration_seconds",
				Help:    "Duration of verification requests in seconds",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"flow", "outcome"},
		),
		verifyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defender_verify_total",
				Help: "Total number of verification requests",
			},
			[]string{"flow", "outcome"},
		),
		signatureFires: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defender_signature_fires_total",
				Help: "Total number of signature detections by signature id",
			},
			[]string{"signature"},
		),
		registeredTools: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "defender_registered_tools",
				Help: "Number of tools registered per target server",
			},
			[]string{"server"},
		),
	}
}

func (p *PrometheusMetrics) RecordVerification(flow domain.VerifyFlow, signature string, outcome domain.VerifyOutcomeLabel, duration time.Duration) {
	p.verifyTotal.WithLabelValues(string(flow), string(outcome)).Inc()
	p.verifyDuration.WithLabelValues(string(flow), string(outcome)).Observe(duration.Seconds())
	if signature != "" {
		p.signatureFires.WithLabelValues(signature).Inc()
	}
}

func (p *PrometheusMetrics) RecordRegisteredTools(serverName string, count int) {
	p.registeredTools.WithLabelValues(serverName).Set(float64(count))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
