package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/internal/clock"
	historydomain "github.com/smallbiznis/renewly/internal/history/domain"
	"github.com/smallbiznis/renewly/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/renewly/pkg/db"
	"github.com/smallbiznis/renewly/pkg/db/option"
	"github.com/smallbiznis/renewly/pkg/db/pagination"
	"github.com/smallbiznis/renewly/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    repository.Repository[historydomain.Upload]
	metrics *metrics.Metrics
}

func NewService(p Params) historydomain.Service {
	return &Service{
		log:     p.Log.Named("history.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    repository.ProvideStore[historydomain.Upload](p.DB),
		metrics: p.Metrics,
	}
}

func (s *Service) RecordUpload(ctx context.Context, req historydomain.RecordUploadRequest) error {
	if req.TenantID == 0 {
		return historydomain.ErrInvalidTenant
	}
	batchID := strings.TrimSpace(req.BatchID)
	if batchID == "" {
		return historydomain.ErrInvalidBatch
	}
	if req.TotalRows < 0 || req.ProcessedRows < 0 || req.ProcessedRows > req.TotalRows {
		return historydomain.ErrInvalidRowCount
	}

	upload := &historydomain.Upload{
		ID:            s.genID.Generate(),
		TenantID:      req.TenantID,
		BatchID:       batchID,
		SourceLabel:   strings.TrimSpace(req.SourceLabel),
		TotalRows:     req.TotalRows,
		ProcessedRows: req.ProcessedRows,
		UploadedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, upload); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return historydomain.ErrAlreadyRecorded
		}
		return fmt.Errorf("record upload: %w", err)
	}

	s.metrics.RecordUpload(ctx)
	s.log.Info("upload recorded",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("batch_id", batchID),
		zap.Int("total_rows", req.TotalRows),
		zap.Int("processed_rows", req.ProcessedRows),
	)
	return nil
}

// List returns the tenant's uploads newest first.
func (s *Service) List(ctx context.Context, tenantID snowflake.ID, page pagination.Pagination) (historydomain.ListResponse, error) {
	if tenantID == 0 {
		return historydomain.ListResponse{}, historydomain.ErrInvalidTenant
	}
	limit := page.Limit()

	opts := []option.QueryOption{
		option.WithOrder("id DESC"),
		option.WithLimit(limit + 1),
	}
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return historydomain.ListResponse{}, err
	}
	if cursor != nil {
		lastID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return historydomain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		opts = append(opts, option.WithWhere("id < ?", lastID))
	}

	rows, err := s.repo.Find(ctx, &historydomain.Upload{TenantID: tenantID}, opts...)
	if err != nil {
		return historydomain.ListResponse{}, fmt.Errorf("list uploads: %w", err)
	}

	rows, info := pagination.BuildCursorPageInfo(rows, limit, func(u *historydomain.Upload) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        u.ID.String(),
			CreatedAt: u.UploadedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})

	uploads := make([]historydomain.Upload, 0, len(rows))
	for _, row := range rows {
		uploads = append(uploads, *row)
	}
	return historydomain.ListResponse{PageInfo: info, Uploads: uploads}, nil
}
