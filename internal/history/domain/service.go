package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/pkg/db/pagination"
)

type RecordUploadRequest struct {
	TenantID      snowflake.ID
	BatchID       string
	SourceLabel   string
	TotalRows     int
	ProcessedRows int
}

type ListResponse struct {
	pagination.PageInfo
	Uploads []Upload `json:"uploads"`
}

// Recorder is the side channel a pipeline run reports to after committing a batch.
type Recorder interface {
	RecordUpload(ctx context.Context, req RecordUploadRequest) error
}

type Service interface {
	Recorder
	List(ctx context.Context, tenantID snowflake.ID, page pagination.Pagination) (ListResponse, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidBatch    = errors.New("invalid_batch")
	ErrInvalidRowCount = errors.New("invalid_row_count")
	ErrAlreadyRecorded = errors.New("upload_already_recorded")
)
