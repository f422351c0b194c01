package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/renewly/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	rateLimitReasonTenantRate     = "tenant-rate"
	rateLimitReasonUploadInFlight = "upload-in-flight"
)

// UploadRateLimit spends a tenant upload token and holds the tenant's upload
// lock for the rest of the request.
func (s *Server) UploadRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.uploadLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		tenantID, _ := tenantFromContext(c)

		res, err := s.uploadLimiter.AllowTenant(ctx, tenantID)
		if err != nil {
			logger.FromContext(ctx).Warn("upload rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			denyUpload(c, rateLimitReasonTenantRate, ErrRateLimited)
			return
		}

		release, ok, err := s.uploadLimiter.LockTenant(ctx, tenantID)
		if err != nil {
			logger.FromContext(ctx).Warn("upload lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !ok {
			denyUpload(c, rateLimitReasonUploadInFlight, ErrUploadInProgress)
			return
		}
		defer func() {
			if err := release(ctx); err != nil {
				logger.FromContext(ctx).Warn("upload unlock failed", zap.Error(err))
			}
		}()

		c.Next()
	}
}

func denyUpload(c *gin.Context, reason string, err error) {
	logger.FromContext(c.Request.Context()).Warn("upload rejected", zap.String("reason", reason))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, err)
}
