package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

const (
	metricsNamespace = "semantic_layer"
	metricsSubsystem = "pipeline"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// QueriesTotal counts finished calls.
	// Labels: mode (query, preview, replay), status (success, preview, denied, error)
	QueriesTotal *prometheus.CounterVec

	// StageFailuresTotal counts aborted pipelines by failing stage and error kind.
	StageFailuresTotal *prometheus.CounterVec

	// ExecutionSeconds measures downstream query latency.
	// Labels: engine, outcome (ok, failed)
	ExecutionSeconds *prometheus.HistogramVec

	// AuditWriteErrorsTotal counts audit rows that could not be persisted.
	AuditWriteErrorsTotal prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "queries_total",
				Help:      "Total semantic pipeline calls by mode and terminal status",
			},
			[]string{"mode", "status"},
		),
		StageFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "stage_failures_total",
				Help:      "Total pipeline aborts by stage and error kind",
			},
			[]string{"stage", "kind"},
		),
		ExecutionSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "execution_seconds",
				Help:      "Downstream query execution latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"engine", "outcome"},
		),
		AuditWriteErrorsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "audit_write_errors_total",
				Help:      "Total audit rows that failed to persist",
			},
		),
	}
}

func (m *Metrics) observeCall(mode string, status types.QueryStatus) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(mode, string(status)).Inc()
}

func (m *Metrics) observeStageFailure(stage string, kind types.ErrorKind) {
	if m == nil {
		return
	}
	m.StageFailuresTotal.WithLabelValues(stage, string(kind)).Inc()
}

func (m *Metrics) observeExecution(engine string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	if engine == "" {
		engine = "unknown"
	}
	m.ExecutionSeconds.WithLabelValues(engine, outcome).Observe(d.Seconds())
}

func (m *Metrics) observeAuditWriteError() {
	if m == nil {
		return
	}
	m.AuditWriteErrorsTotal.Inc()
}
