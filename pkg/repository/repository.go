package repository

import (
	"context"

	"github.com/smallbiznis/renewly/pkg/db/option"
)

// Repository is a typed gorm store for a single model.
type Repository[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
}
