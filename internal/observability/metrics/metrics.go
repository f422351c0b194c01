package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes domain event instruments pushed over OTLP.
type Metrics struct {
	batchesPersisted metric.Int64Counter
	messagesRendered metric.Int64Counter
	templateChanges  metric.Int64Counter
	uploadsRecorded  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "renewly"
	}
	meter := provider.Meter(name)

	batchesPersisted, err := meter.Int64Counter("renewly_batches_persisted_total")
	if err != nil {
		return nil, err
	}
	messagesRendered, err := meter.Int64Counter("renewly_messages_rendered_total")
	if err != nil {
		return nil, err
	}
	templateChanges, err := meter.Int64Counter("renewly_template_changes_total")
	if err != nil {
		return nil, err
	}
	uploadsRecorded, err := meter.Int64Counter("renewly_uploads_recorded_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		batchesPersisted: batchesPersisted,
		messagesRendered: messagesRendered,
		templateChanges:  templateChanges,
		uploadsRecorded:  uploadsRecorded,
	}, nil
}

// RecordBatchPersisted counts a committed batch.
func (m *Metrics) RecordBatchPersisted(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.batchesPersisted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMessagesRendered adds rendered message counts for a tier.
func (m *Metrics) RecordMessagesRendered(ctx context.Context, tier string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("tier", tier))
	m.messagesRendered.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordTemplateChange counts template overrides and resets.
func (m *Metrics) RecordTemplateChange(ctx context.Context, tier, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("tier", tier),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.templateChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUpload counts upload history rows.
func (m *Metrics) RecordUpload(ctx context.Context) {
	if m == nil {
		return
	}
	m.uploadsRecorded.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"tier":    {},
	"action":  {},
	"source":  {},
	"outcome": {},
	"stage":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
