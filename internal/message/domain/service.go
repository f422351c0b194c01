package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/internal/calendar"
)

type TemplateResponse struct {
	Tier      int        `json:"tier"`
	Label     string     `json:"label"`
	Body      string     `json:"body"`
	IsDefault bool       `json:"is_default"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type PreviewResponse struct {
	Tier    int    `json:"tier"`
	Preview string `json:"preview"`
}

type Service interface {
	// EngineFor returns an engine holding the defaults overlaid with the tenant's overrides.
	EngineFor(ctx context.Context, tenantID snowflake.ID) (*Engine, error)
	SetTemplate(ctx context.Context, tenantID snowflake.ID, tier calendar.Tier, body string) (*TemplateResponse, error)
	ResetTemplate(ctx context.Context, tenantID snowflake.ID, tier calendar.Tier) (*TemplateResponse, error)
	ListTemplates(ctx context.Context, tenantID snowflake.ID) ([]TemplateResponse, error)
	Preview(ctx context.Context, tenantID snowflake.ID, tenantName string, tier calendar.Tier) (*PreviewResponse, error)
}

var (
	ErrTemplateValidation = errors.New("template_validation")
	ErrUnknownTier        = errors.New("unknown_tier")
	ErrInvalidTenant      = errors.New("invalid_tenant")
)
