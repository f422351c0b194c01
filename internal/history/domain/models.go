package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Upload records one successful pipeline run against its source.
type Upload struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	BatchID       string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"batch_id"`
	SourceLabel   string       `gorm:"type:varchar(255);not null" json:"source_label"`
	TotalRows     int          `gorm:"not null" json:"total_rows"`
	ProcessedRows int          `gorm:"not null" json:"processed_rows"`
	UploadedAt    time.Time    `gorm:"not null" json:"uploaded_at"`
}

func (Upload) TableName() string { return "upload_history" }
