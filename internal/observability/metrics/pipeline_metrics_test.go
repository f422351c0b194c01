package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"gorm.io/gorm"
)

func TestClassifyPipelineReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: PipelineReasonDeadlineExceeded},
		{name: "canceled", err: fmt.Errorf("persist: %w", context.Canceled), want: PipelineReasonCanceled},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: PipelineReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: PipelineReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: PipelineReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: PipelineReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPipelineReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPipelineMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newPipelineMetrics(registry, Config{
		ServiceName: "renewly",
		Environment: "test",
	})

	m.ObserveRun(RunOutcomeSuccess, 120*time.Millisecond)
	m.ObserveRun(RunOutcomeFailure, 10*time.Millisecond)
	m.AddMembers("1", 4)
	m.AddMembers("3", 0)
	m.AddExcluded(2)
	m.IncHistoryFailure()
	m.IncStageError("persist", errors.New("boom"))

	if got := testutil.ToFloat64(m.runs.WithLabelValues(RunOutcomeSuccess)); got != 1 {
		t.Fatalf("expected 1 successful run, got %v", got)
	}
	if got := testutil.ToFloat64(m.members.WithLabelValues("1")); got != 4 {
		t.Fatalf("expected 4 tier-1 members, got %v", got)
	}
	if got := testutil.ToFloat64(m.excluded); got != 2 {
		t.Fatalf("expected 2 excluded, got %v", got)
	}
	if got := testutil.ToFloat64(m.historyFailures); got != 1 {
		t.Fatalf("expected 1 history failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.stageErrors.WithLabelValues("persist", PipelineReasonUnknown)); got != 1 {
		t.Fatalf("expected 1 persist error, got %v", got)
	}

	var hist dto.Metric
	if err := m.runDuration.Write(&hist); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if got := hist.GetHistogram().GetSampleCount(); got != 2 {
		t.Fatalf("expected 2 duration samples, got %d", got)
	}
}

func TestNilPipelineMetricsIsNoop(t *testing.T) {
	var m *PipelineMetrics
	m.ObserveRun(RunOutcomeSuccess, time.Second)
	m.AddMembers("1", 1)
	m.IncHistoryFailure()
}
