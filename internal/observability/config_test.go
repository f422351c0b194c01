package observability

import (
	"testing"
	"time"

	"github.com/smallbiznis/renewly/internal/config"
	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")

	cfg := LoadConfig(config.Config{AppVersion: "1.2.3", Environment: "production", LogLevel: "info"})
	assert.Equal(t, "renewly", cfg.ServiceName)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.False(t, cfg.Debug())

	assert.True(t, Config{Environment: "test"}.Debug())
	assert.True(t, Config{LogLevel: "debug"}.Debug())
}

func TestProvideGormLoggerConfig(t *testing.T) {
	t.Setenv("DATABASE_SLOW_QUERY_MS", "50")
	t.Setenv("DATABASE_LOG_PARAMS", "true")

	prod := provideGormLoggerConfig(LoadConfig(config.Config{Environment: "production", LogLevel: "info"}))
	assert.Equal(t, gormlogger.Warn, prod.Level)
	assert.Equal(t, 50*time.Millisecond, prod.SlowThreshold)
	assert.False(t, prod.LogParams)

	// Debug logging in production still never keeps member values.
	prodDebug := provideGormLoggerConfig(LoadConfig(config.Config{Environment: "production", LogLevel: "debug"}))
	assert.Equal(t, gormlogger.Info, prodDebug.Level)
	assert.False(t, prodDebug.LogParams)

	dev := provideGormLoggerConfig(LoadConfig(config.Config{Environment: "development", LogLevel: "info"}))
	assert.Equal(t, gormlogger.Info, dev.Level)
	assert.True(t, dev.IgnoreRecordNotFound)
	assert.True(t, dev.LogParams)
}
