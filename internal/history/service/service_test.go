package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/internal/clock"
	historydomain "github.com/smallbiznis/renewly/internal/history/domain"
	"github.com/smallbiznis/renewly/pkg/db/dbtest"
	"github.com/smallbiznis/renewly/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) historydomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewService(Params{
		DB:    dbtest.Open(t, &historydomain.Upload{}),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, time.December, 10, 0, 0, 0, 0, time.UTC)),
	})
}

func TestRecordUploadValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.RecordUpload(ctx, historydomain.RecordUploadRequest{BatchID: "b"}), historydomain.ErrInvalidTenant)
	assert.ErrorIs(t, svc.RecordUpload(ctx, historydomain.RecordUploadRequest{TenantID: 1}), historydomain.ErrInvalidBatch)
	assert.ErrorIs(t, svc.RecordUpload(ctx, historydomain.RecordUploadRequest{
		TenantID: 1, BatchID: "b", TotalRows: 2, ProcessedRows: 3,
	}), historydomain.ErrInvalidRowCount)

	req := historydomain.RecordUploadRequest{TenantID: 1, BatchID: "b", SourceLabel: "members.xlsx", TotalRows: 3, ProcessedRows: 2}
	require.NoError(t, svc.RecordUpload(ctx, req))
	assert.ErrorIs(t, svc.RecordUpload(ctx, req), historydomain.ErrAlreadyRecorded)
}

func TestListNewestFirstWithCursor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.RecordUpload(ctx, historydomain.RecordUploadRequest{
			TenantID: 1, BatchID: fmt.Sprintf("b-%d", i), TotalRows: i, ProcessedRows: i,
		}))
	}
	require.NoError(t, svc.RecordUpload(ctx, historydomain.RecordUploadRequest{TenantID: 2, BatchID: "other"}))

	first, err := svc.List(ctx, 1, pagination.Pagination{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first.Uploads, 3)
	assert.True(t, first.HasMore)
	assert.Equal(t, "b-4", first.Uploads[0].BatchID)
	assert.Equal(t, "b-2", first.Uploads[2].BatchID)

	second, err := svc.List(ctx, 1, pagination.Pagination{PageSize: 3, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Uploads, 2)
	assert.False(t, second.HasMore)
	assert.Equal(t, "b-1", second.Uploads[0].BatchID)

	_, err = svc.List(ctx, 1, pagination.Pagination{PageToken: "not-a-token"})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
