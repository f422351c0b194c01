// Package tenantctx carries the resolved tenant through request contexts.
package tenantctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type keyType string

const (
	TenantIDKey   keyType = "tenant_id"
	TenantNameKey keyType = "tenant_name"
)

func WithTenant(ctx context.Context, id snowflake.ID, name string) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, id)
	return context.WithValue(ctx, TenantNameKey, name)
}

func TenantID(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(TenantIDKey).(snowflake.ID)
	return id, ok && id != 0
}

func TenantName(ctx context.Context) string {
	name, _ := ctx.Value(TenantNameKey).(string)
	return name
}
