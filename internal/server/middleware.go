package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/renewly/pkg/tenantctx"
)

const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderTenantName = "X-Tenant-Name"
)

// TenantContext resolves the tenant from request headers and stores it on the
// request context. Every /v1 route is tenant scoped.
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderTenantID))
		if raw == "" {
			AbortWithError(c, newValidationError("tenant_id", "required", "X-Tenant-ID header is required"))
			return
		}
		id, err := snowflake.ParseString(raw)
		if err != nil || id <= 0 {
			AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "invalid X-Tenant-ID header"))
			return
		}
		name := strings.TrimSpace(c.GetHeader(HeaderTenantName))

		ctx := tenantctx.WithTenant(c.Request.Context(), id, name)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// tenantFromContext returns the tenant resolved by TenantContext.
func tenantFromContext(c *gin.Context) (snowflake.ID, string) {
	ctx := c.Request.Context()
	id, _ := tenantctx.TenantID(ctx)
	return id, tenantctx.TenantName(ctx)
}
