package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, batch *Batch) error
	InsertSubscriptions(ctx context.Context, db *gorm.DB, subs []*Subscription) error
	InsertMessages(ctx context.Context, db *gorm.DB, msgs []*Message) error
	FindBatch(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchID string) (*Batch, error)
	FindLatestBatch(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*Batch, error)
	ListMessages(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchID string, tier *int) ([]OutboundMessage, error)
	CountByTier(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchID string) ([]TierCount, error)
}
