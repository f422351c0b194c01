package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	RunOutcomeSuccess = "success"
	RunOutcomeFailure = "failure"
)

const (
	PipelineReasonDeadlineExceeded     = "deadline_exceeded"
	PipelineReasonCanceled             = "canceled"
	PipelineReasonDBLockTimeout        = "db_lock_timeout"
	PipelineReasonSerializationFailure = "serialization_failure"
	PipelineReasonUniqueViolation      = "unique_violation"
	PipelineReasonUnknown              = "unknown"
)

// PipelineMetrics captures batch pipeline health for scraping.
type PipelineMetrics struct {
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	members         *prometheus.CounterVec
	excluded        prometheus.Counter
	stageErrors     *prometheus.CounterVec
	historyFailures prometheus.Counter
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registered on the default registerer.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// NewPipelineMetrics registers pipeline metrics on registerer.
func NewPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	return newPipelineMetrics(registerer, cfg)
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "renewly"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "renewly_pipeline_runs_total",
		Help:        "Pipeline runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "renewly_pipeline_run_duration_seconds",
		Help:        "End to end pipeline latency including persistence.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	})
	members := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "renewly_pipeline_members_total",
		Help:        "Classified members persisted by tier.",
		ConstLabels: constLabels,
	}, []string{"tier"})
	excluded := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "renewly_pipeline_excluded_total",
		Help:        "Members dropped for being more than 30 days from expiry.",
		ConstLabels: constLabels,
	})
	stageErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "renewly_pipeline_stage_errors_total",
		Help:        "Pipeline failures by stage and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"stage", "reason"})
	historyFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "renewly_history_failures_total",
		Help:        "Upload history writes that failed after a batch was committed.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		runs,
		runDuration,
		members,
		excluded,
		stageErrors,
		historyFailures,
	)

	return &PipelineMetrics{
		runs:            runs,
		runDuration:     runDuration,
		members:         members,
		excluded:        excluded,
		stageErrors:     stageErrors,
		historyFailures: historyFailures,
	}
}

func (m *PipelineMetrics) ObserveRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *PipelineMetrics) AddMembers(tier string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.members.WithLabelValues(tier).Add(float64(count))
}

func (m *PipelineMetrics) AddExcluded(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.excluded.Add(float64(count))
}

func (m *PipelineMetrics) IncStageError(stage string, err error) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage, ClassifyPipelineReason(err)).Inc()
}

func (m *PipelineMetrics) IncHistoryFailure() {
	if m == nil {
		return
	}
	m.historyFailures.Inc()
}

// ClassifyPipelineReason maps an error to a bounded label value.
func ClassifyPipelineReason(err error) string {
	switch {
	case err == nil:
		return PipelineReasonUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return PipelineReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return PipelineReasonCanceled
	case hasPGCode(err, "55P03"):
		return PipelineReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return PipelineReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return PipelineReasonUniqueViolation
	default:
		return PipelineReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
