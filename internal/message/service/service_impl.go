package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/internal/cache"
	"github.com/smallbiznis/renewly/internal/calendar"
	"github.com/smallbiznis/renewly/internal/clock"
	messagedomain "github.com/smallbiznis/renewly/internal/message/domain"
	"github.com/smallbiznis/renewly/internal/observability/metrics"
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
	Repo    messagedomain.Repository
	Metrics *metrics.Metrics    `optional:"true"`
	Cache   cache.TemplateCache `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    messagedomain.Repository
	metrics *metrics.Metrics
	cache   cache.TemplateCache
}

func NewService(p Params) messagedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("message.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
		cache:   p.Cache,
	}
}

func (s *Service) EngineFor(ctx context.Context, tenantID snowflake.ID) (*messagedomain.Engine, error) {
	if tenantID == 0 {
		return nil, messagedomain.ErrInvalidTenant
	}

	overrides, err := s.overrides(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	engine := messagedomain.NewEngine()
	for tier, body := range overrides {
		if err := engine.SetTemplate(tier, body); err != nil {
			return nil, fmt.Errorf("install template tier %d: %w", int(tier), err)
		}
	}
	return engine, nil
}

// overrides returns the tenant's valid stored templates, through the cache when one is wired.
func (s *Service) overrides(ctx context.Context, tenantID snowflake.ID) (map[calendar.Tier]string, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(tenantID); ok {
			return cached, nil
		}
	}

	rows, err := s.repo.ListByTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	overrides := make(map[calendar.Tier]string, len(rows))
	for _, tmpl := range rows {
		tier := calendar.Tier(tmpl.Tier)
		// Rows were validated on write; a row that no longer validates is skipped, not fatal.
		if err := messagedomain.ValidateTemplate(tier, tmpl.Body); err != nil {
			s.log.Warn("ignoring stored template",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("tier", tmpl.Tier),
				zap.Error(err),
			)
			continue
		}
		overrides[tier] = tmpl.Body
	}

	if s.cache != nil {
		s.cache.Set(tenantID, overrides)
	}
	return overrides, nil
}

func (s *Service) invalidate(tenantID snowflake.ID) {
	if s.cache != nil {
		s.cache.Invalidate(tenantID)
	}
}

func (s *Service) SetTemplate(ctx context.Context, tenantID snowflake.ID, tier calendar.Tier, body string) (*messagedomain.TemplateResponse, error) {
	if tenantID == 0 {
		return nil, messagedomain.ErrInvalidTenant
	}
	body = strings.TrimSpace(body)
	if err := messagedomain.ValidateTemplate(tier, body); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var saved messagedomain.Template
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByTier(ctx, tx, tenantID, int(tier))
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Body = body
			existing.UpdatedAt = now
			saved = *existing
			return s.repo.Update(ctx, tx, existing)
		}
		saved = messagedomain.Template{
			ID:        s.genID.Generate(),
			TenantID:  tenantID,
			Tier:      int(tier),
			Body:      body,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.Insert(ctx, tx, &saved)
	})
	if err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	s.invalidate(tenantID)

	s.metrics.RecordTemplateChange(ctx, tier.String(), "set")
	s.log.Info("template updated",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("tier", int(tier)),
	)
	return toResponse(tier, saved.Body, false, &saved), nil
}

func (s *Service) ResetTemplate(ctx context.Context, tenantID snowflake.ID, tier calendar.Tier) (*messagedomain.TemplateResponse, error) {
	if tenantID == 0 {
		return nil, messagedomain.ErrInvalidTenant
	}
	body, ok := messagedomain.DefaultTemplate(tier)
	if !ok {
		return nil, fmt.Errorf("%w: %d", messagedomain.ErrUnknownTier, int(tier))
	}

	removed, err := s.repo.Delete(ctx, s.db, tenantID, int(tier))
	if err != nil {
		return nil, fmt.Errorf("delete template: %w", err)
	}
	if removed > 0 {
		s.invalidate(tenantID)
		s.metrics.RecordTemplateChange(ctx, tier.String(), "reset")
	}
	return toResponse(tier, body, true, nil), nil
}

func (s *Service) ListTemplates(ctx context.Context, tenantID snowflake.ID) ([]messagedomain.TemplateResponse, error) {
	if tenantID == 0 {
		return nil, messagedomain.ErrInvalidTenant
	}
	overrides, err := s.repo.ListByTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	byTier := make(map[calendar.Tier]*messagedomain.Template, len(overrides))
	for i := range overrides {
		byTier[calendar.Tier(overrides[i].Tier)] = &overrides[i]
	}

	resp := make([]messagedomain.TemplateResponse, 0, len(calendar.Tiers))
	for _, tier := range calendar.Tiers {
		if tmpl, ok := byTier[tier]; ok {
			resp = append(resp, *toResponse(tier, tmpl.Body, false, tmpl))
			continue
		}
		body, _ := messagedomain.DefaultTemplate(tier)
		resp = append(resp, *toResponse(tier, body, true, nil))
	}
	return resp, nil
}

func (s *Service) Preview(ctx context.Context, tenantID snowflake.ID, tenantName string, tier calendar.Tier) (*messagedomain.PreviewResponse, error) {
	engine, err := s.EngineFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	text, err := engine.Preview(tier, tenantName)
	if err != nil {
		return nil, err
	}
	return &messagedomain.PreviewResponse{Tier: int(tier), Preview: text}, nil
}

func toResponse(tier calendar.Tier, body string, isDefault bool, tmpl *messagedomain.Template) *messagedomain.TemplateResponse {
	resp := &messagedomain.TemplateResponse{
		Tier:      int(tier),
		Label:     tier.Label(),
		Body:      body,
		IsDefault: isDefault,
	}
	if tmpl != nil {
		updated := tmpl.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
