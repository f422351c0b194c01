package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/internal/calendar"
)

// OutboundMessage is the read model consumers export, urgency first.
type OutboundMessage struct {
	ID             snowflake.ID  `json:"id"`
	SubscriptionID snowflake.ID  `json:"subscription_id"`
	CustomerName   string        `json:"customer_name"`
	PhoneNumber    string        `json:"phone_number"`
	EndDate        time.Time     `json:"subscription_end_date"`
	DaysRemaining  int           `json:"days_remaining"`
	Tier           calendar.Tier `json:"tier"`
	MessageText    string        `json:"message_text"`
}

type TierCount struct {
	Tier  int
	Count int
}

// Record is everything one pipeline run writes, committed as a unit.
type Record struct {
	Batch         Batch
	Subscriptions []Subscription
	Messages      []Message
}

type Store interface {
	SaveSubscriptions(ctx context.Context, subs []Subscription) (int, error)
	SaveMessages(ctx context.Context, msgs []Message) (int, error)
	SaveBatch(ctx context.Context, record Record) error

	GetBatch(ctx context.Context, tenantID snowflake.ID, batchID string) (*Batch, error)
	GetByBatch(ctx context.Context, tenantID snowflake.ID, batchID string) ([]OutboundMessage, error)
	ListByTier(ctx context.Context, tenantID snowflake.ID, batchID string, tier calendar.Tier) ([]OutboundMessage, error)
	GetLatestBatchID(ctx context.Context, tenantID snowflake.ID) (string, bool, error)
	GetTierCounts(ctx context.Context, tenantID snowflake.ID, batchID string) (calendar.TierCounts, error)
}

var (
	ErrBatchNotFound = errors.New("batch_not_found")
	ErrBatchExists   = errors.New("batch_exists")
	ErrInvalidRecord = errors.New("invalid_batch_record")
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidTier   = errors.New("invalid_tier")
)
