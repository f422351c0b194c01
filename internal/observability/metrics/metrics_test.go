package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tier", "1"),
		attribute.String("tenant_id", "456"),
		attribute.String("source", "members.xlsx"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "tenant_id" {
			t.Fatalf("expected tenant_id to be dropped")
		}
	}
}

func TestDomainCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "renewly"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordMessagesRendered(ctx, "1", 3)
	m.RecordMessagesRendered(ctx, "7", 0)
	m.RecordBatchPersisted(ctx, "api")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[md.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(3), totals["renewly_messages_rendered_total"])
	assert.Equal(t, int64(1), totals["renewly_batches_persisted_total"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordUpload(context.Background())
	m.RecordTemplateChange(context.Background(), "1", "set")
}
