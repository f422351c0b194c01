package logger

import (
	"context"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/renewly/internal/observability/context"
	"github.com/smallbiznis/renewly/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = tenantctx.WithTenant(ctx, 77, "Iron Temple")
	ctx = obscontext.WithBatchID(ctx, "b-1")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "77", fields["tenant_id"])
		assert.Equal(t, "b-1", fields["batch_id"])
		assert.Equal(t, "", fields["trace_id"])
	}
}

func TestWithContextOmitsMissingTenant(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	WithContext(context.Background(), zap.New(core)).Info("hello")

	fields := logs.All()[0].ContextMap()
	_, ok := fields["tenant_id"]
	assert.False(t, ok)
}

func TestTableAndOperationFromSQL(t *testing.T) {
	assert.Equal(t, "INSERT", operationFromSQL("INSERT INTO batch_messages (id) VALUES (1)"))
	assert.Equal(t, "batch_messages", tableFromSQL("INSERT INTO batch_messages (id) VALUES (1)"))
	assert.Equal(t, "batches", tableFromSQL(`SELECT * FROM "batches" WHERE id = 1`))
	assert.Equal(t, "", tableFromSQL("BEGIN"))
}

func TestGormTraceNamesOwningStore(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	gl := NewGormLogger(GormLoggerConfig{Level: gormlogger.Info})
	ctx := tenantctx.WithTenant(context.Background(), 77, "Iron Temple")
	gl.Trace(ctx, time.Now(), func() (string, int64) {
		return `INSERT INTO "batch_messages" ("id") VALUES (1)`, 1
	}, nil)

	entries := logs.FilterMessage("gorm.query").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "batch_messages", fields["table"])
		assert.Equal(t, "batch", fields["store"])
		assert.Equal(t, "77", fields["tenant_id"])
	}

	assert.Equal(t, "history", storeForTable("upload_history"))
	assert.Equal(t, "message", storeForTable("message_templates"))
	assert.Equal(t, "", storeForTable("sqlite_master"))
	assert.False(t, GormLoggerConfig{}.Configured())
	assert.True(t, DefaultGormLoggerConfig().Configured())
}
