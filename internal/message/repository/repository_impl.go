package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	messagedomain "github.com/smallbiznis/renewly/internal/message/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() messagedomain.Repository {
	return &repo{}
}

func (r *repo) FindByTier(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, tier int) (*messagedomain.Template, error) {
	var tmpl messagedomain.Template
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, tier, body, created_at, updated_at
		 FROM message_templates
		 WHERE tenant_id = ? AND tier = ?`,
		tenantID,
		tier,
	).Scan(&tmpl).Error
	if err != nil {
		return nil, err
	}
	if tmpl.ID == 0 {
		return nil, nil
	}
	return &tmpl, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tmpl *messagedomain.Template) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO message_templates (id, tenant_id, tier, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tmpl.ID,
		tmpl.TenantID,
		tmpl.Tier,
		tmpl.Body,
		tmpl.CreatedAt,
		tmpl.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tmpl *messagedomain.Template) error {
	return db.WithContext(ctx).Exec(
		`UPDATE message_templates
		 SET body = ?, updated_at = ?
		 WHERE tenant_id = ? AND tier = ?`,
		tmpl.Body,
		tmpl.UpdatedAt,
		tmpl.TenantID,
		tmpl.Tier,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, tier int) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM message_templates WHERE tenant_id = ? AND tier = ?`,
		tenantID,
		tier,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]messagedomain.Template, error) {
	var items []messagedomain.Template
	err := db.WithContext(ctx).
		Model(&messagedomain.Template{}).
		Where("tenant_id = ?", tenantID).
		Order("tier ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
