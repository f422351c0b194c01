package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Batch is one pipeline run's persisted output. Rows are never updated.
type Batch struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID   `gorm:"not null;index:ix_batches_tenant_created,priority:1" json:"tenant_id"`
	BatchID       string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"batch_id"`
	SourceLabel   string         `gorm:"type:varchar(255);not null" json:"source_label"`
	ReferenceDate time.Time      `gorm:"type:date;not null" json:"reference_date"`
	TotalRows     int            `gorm:"not null" json:"total_rows"`
	MemberCount   int            `gorm:"not null" json:"member_count"`
	TierCounts    datatypes.JSON `gorm:"not null" json:"tier_counts"`
	CreatedAt     time.Time      `gorm:"not null;index:ix_batches_tenant_created,priority:2" json:"created_at"`
}

func (Batch) TableName() string { return "batches" }

// Subscription is the member record plus derived fields, scoped to one batch.
type Subscription struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	BatchID       string       `gorm:"type:varchar(64);not null;index" json:"batch_id"`
	CustomerName  string       `gorm:"type:varchar(255);not null" json:"customer_name"`
	PhoneNumber   string       `gorm:"type:varchar(32);not null" json:"phone_number"`
	StartDate     time.Time    `gorm:"type:date;not null" json:"subscription_start_date"`
	EndDate       time.Time    `gorm:"type:date;not null" json:"subscription_end_date"`
	DaysRemaining int          `gorm:"not null" json:"days_remaining"`
	Tier          int          `gorm:"not null" json:"tier"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (Subscription) TableName() string { return "batch_subscriptions" }

// Message is a rendered outbound text tied to the subscription row it came from.
type Message struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	BatchID        string       `gorm:"type:varchar(64);not null;index:ix_batch_messages_order,priority:1" json:"batch_id"`
	SubscriptionID snowflake.ID `gorm:"not null;uniqueIndex" json:"subscription_id"`
	CustomerName   string       `gorm:"type:varchar(255);not null" json:"customer_name"`
	PhoneNumber    string       `gorm:"type:varchar(32);not null" json:"phone_number"`
	EndDate        time.Time    `gorm:"type:date;not null" json:"subscription_end_date"`
	DaysRemaining  int          `gorm:"not null;index:ix_batch_messages_order,priority:3" json:"days_remaining"`
	Tier           int          `gorm:"not null;index:ix_batch_messages_order,priority:2" json:"tier"`
	MessageText    string       `gorm:"type:text;not null" json:"message_text"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (Message) TableName() string { return "batch_messages" }

// Models lists the tables owned by the batch store, in dependency order.
func Models() []any {
	return []any{&Batch{}, &Subscription{}, &Message{}}
}
