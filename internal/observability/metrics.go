// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	namespace string
	factory   promauto.Factory

	// Workflow metrics
	VerificationsTotal   *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	DeploymentsTotal     *prometheus.CounterVec
	DeploymentDuration   prometheus.Histogram
	BalanceGateBlocks    prometheus.Counter

	// Upstream metrics
	BalanceReadsTotal *prometheus.CounterVec
	RPCCallLatency    *prometheus.HistogramVec
	UploadsTotal      *prometheus.CounterVec

	// Session metrics
	ActiveSessions prometheus.Gauge
	TokenWrites    *prometheus.CounterVec
}

// NewMetrics registers all metrics on reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "cardmint"
	}
	factory := promauto.With(reg)

	return &Metrics{
		namespace: namespace,
		factory:   factory,

		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "verifications_total",
			Help:      "AI verification calls by outcome",
		}, []string{"outcome"}),
		VerificationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "verification_duration_seconds",
			Help:      "Duration of AI verification calls",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 120},
		}),
		DeploymentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "deployments_total",
			Help:      "Token deployment attempts by outcome",
		}, []string{"outcome"}),
		DeploymentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "deployment_duration_seconds",
			Help:      "Duration of token deployment attempts",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 90, 180},
		}),
		BalanceGateBlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "balance_gate_blocks_total",
			Help:      "Deploys blocked by a balance below the minimum",
		}),

		BalanceReadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "balance_reads_total",
			Help:      "Wallet balance reads by result",
		}, []string{"result"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_duration_seconds",
			Help:      "Latency of Solana RPC calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "uploads_total",
			Help:      "Media uploads by prefix and result",
		}, []string{"prefix", "result"}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Wallet sessions currently held in memory",
		}),
		TokenWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "token_writes_total",
			Help:      "Token listing writes by result",
		}, []string{"result"}),
	}
}

// RegisterGaugeFunc exposes a value computed on scrape, like the number of
// realtime listeners
func (m *Metrics) RegisterGaugeFunc(subsystem, name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordVerification(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(outcome).Inc()
	m.VerificationDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordDeployment(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.DeploymentsTotal.WithLabelValues(outcome).Inc()
	m.DeploymentDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordBalanceRead(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.BalanceReadsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBalanceBlock() {
	if m == nil {
		return
	}
	m.BalanceGateBlocks.Inc()
}

func (m *Metrics) RecordRPCLatency(method string, started time.Time) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordUpload(prefix string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UploadsTotal.WithLabelValues(prefix, result).Inc()
}

func (m *Metrics) RecordTokenWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TokenWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
