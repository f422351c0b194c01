package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/internal/cache"
	"github.com/smallbiznis/renewly/internal/calendar"
	"github.com/smallbiznis/renewly/internal/clock"
	messagedomain "github.com/smallbiznis/renewly/internal/message/domain"
	"github.com/smallbiznis/renewly/internal/message/repository"
	"github.com/smallbiznis/renewly/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func newTestService(t *testing.T) (messagedomain.Service, *clock.FakeClock) {
	t.Helper()
	conn := dbtest.Open(t, &messagedomain.Template{})
	fake := clock.NewFakeClock(time.Date(2025, time.December, 10, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: mustNode(t),
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, fake
}

func TestSetTemplateOverridesEngine(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := snowflake.ID(101)

	resp, err := svc.SetTemplate(ctx, tenant, calendar.Tier3, "  {name}, {tenant_name} expires {date}  ")
	require.NoError(t, err)
	assert.False(t, resp.IsDefault)
	assert.Equal(t, "{name}, {tenant_name} expires {date}", resp.Body)

	engine, err := svc.EngineFor(ctx, tenant)
	require.NoError(t, err)
	got := engine.Render(calendar.Tier3, messagedomain.Member{
		CustomerName: "Asha Rao",
		EndDate:      calendar.Date(2025, time.December, 13),
	}, "Iron Temple")
	assert.Equal(t, "Asha, Iron Temple expires 13-12-2025", got)

	other, err := svc.EngineFor(ctx, snowflake.ID(202))
	require.NoError(t, err)
	def, _ := messagedomain.DefaultTemplate(calendar.Tier3)
	body, _ := other.Template(calendar.Tier3)
	assert.Equal(t, def, body)
}

func TestSetTemplateUpdatesExistingRow(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()
	tenant := snowflake.ID(101)

	_, err := svc.SetTemplate(ctx, tenant, calendar.Tier1, "{name} {tenant_name} {expiry_text} v1")
	require.NoError(t, err)
	fake.Advance(time.Hour)
	resp, err := svc.SetTemplate(ctx, tenant, calendar.Tier1, "{name} {tenant_name} {expiry_text} v2")
	require.NoError(t, err)
	require.NotNil(t, resp.UpdatedAt)
	assert.True(t, resp.UpdatedAt.Equal(fake.Now()))

	list, err := svc.ListTemplates(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, 1, list[0].Tier)
	assert.Equal(t, "{name} {tenant_name} {expiry_text} v2", list[0].Body)
	assert.True(t, list[1].IsDefault)
}

func TestSetTemplateRejectsInvalidBodyWithoutWriting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := snowflake.ID(101)

	_, err := svc.SetTemplate(ctx, tenant, calendar.Tier1, "{name} {tenant_name} {date}")
	require.ErrorIs(t, err, messagedomain.ErrTemplateValidation)

	list, err := svc.ListTemplates(ctx, tenant)
	require.NoError(t, err)
	for _, item := range list {
		assert.True(t, item.IsDefault)
	}

	_, err = svc.SetTemplate(ctx, 0, calendar.Tier1, "{name} {tenant_name} {expiry_text}")
	assert.ErrorIs(t, err, messagedomain.ErrInvalidTenant)
}

func TestResetTemplate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := snowflake.ID(101)

	_, err := svc.SetTemplate(ctx, tenant, calendar.Tier7, "{name} {tenant_name} {date}")
	require.NoError(t, err)

	resp, err := svc.ResetTemplate(ctx, tenant, calendar.Tier7)
	require.NoError(t, err)
	assert.True(t, resp.IsDefault)

	engine, err := svc.EngineFor(ctx, tenant)
	require.NoError(t, err)
	def, _ := messagedomain.DefaultTemplate(calendar.Tier7)
	body, _ := engine.Template(calendar.Tier7)
	assert.Equal(t, def, body)

	_, err = svc.ResetTemplate(ctx, tenant, calendar.Tier(4))
	assert.ErrorIs(t, err, messagedomain.ErrUnknownTier)
}

func TestPreviewUsesTenantOverride(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := snowflake.ID(101)

	_, err := svc.SetTemplate(ctx, tenant, calendar.Tier30, "Dear {name}, {tenant_name} misses you before {date}")
	require.NoError(t, err)

	preview, err := svc.Preview(ctx, tenant, "Iron Temple", calendar.Tier30)
	require.NoError(t, err)
	assert.Equal(t, "Dear [Customer Name], Iron Temple misses you before [DD-MM-YYYY]", preview.Preview)
}

func TestEngineForCachesOverridesUntilWrite(t *testing.T) {
	conn := dbtest.Open(t, &messagedomain.Template{})
	fake := clock.NewFakeClock(time.Date(2025, time.December, 10, 9, 0, 0, 0, time.UTC))
	tc := cache.NewTemplateCache()
	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: mustNode(t),
		Clock: fake,
		Repo:  repository.Provide(),
		Cache: tc,
	})
	ctx := context.Background()
	tenant := snowflake.ID(101)

	_, err := svc.SetTemplate(ctx, tenant, calendar.Tier3, "v1 {name} {tenant_name} {date}")
	require.NoError(t, err)
	_, err = svc.EngineFor(ctx, tenant)
	require.NoError(t, err)

	cached, ok := tc.Get(tenant)
	require.True(t, ok)
	assert.Equal(t, "v1 {name} {tenant_name} {date}", cached[calendar.Tier3])

	// Rows changed behind the service are not seen until the entry is invalidated.
	require.NoError(t, conn.Exec("UPDATE message_templates SET body = ? WHERE tenant_id = ?", "v0 {name} {tenant_name} {date}", int64(tenant)).Error)
	engine, err := svc.EngineFor(ctx, tenant)
	require.NoError(t, err)
	body, _ := engine.Template(calendar.Tier3)
	assert.Equal(t, "v1 {name} {tenant_name} {date}", body)

	_, err = svc.SetTemplate(ctx, tenant, calendar.Tier3, "v2 {name} {tenant_name} {date}")
	require.NoError(t, err)
	_, ok = tc.Get(tenant)
	assert.False(t, ok)

	engine, err = svc.EngineFor(ctx, tenant)
	require.NoError(t, err)
	body, _ = engine.Template(calendar.Tier3)
	assert.Equal(t, "v2 {name} {tenant_name} {date}", body)

	_, err = svc.ResetTemplate(ctx, tenant, calendar.Tier3)
	require.NoError(t, err)
	_, ok = tc.Get(tenant)
	assert.False(t, ok)
}
