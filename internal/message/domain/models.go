package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Template is a tenant override of a default tier template.
type Template struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;uniqueIndex:ux_message_templates_tenant_tier" json:"tenant_id"`
	Tier      int          `gorm:"not null;uniqueIndex:ux_message_templates_tenant_tier" json:"tier"`
	Body      string       `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Template) TableName() string { return "message_templates" }
