package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByTier(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, tier int) (*Template, error)
	Insert(ctx context.Context, db *gorm.DB, tmpl *Template) error
	Update(ctx context.Context, db *gorm.DB, tmpl *Template) error
	Delete(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, tier int) (int64, error)
	ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]Template, error)
}
