package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/renewly/internal/calendar"
	obstracing "github.com/smallbiznis/renewly/internal/observability/tracing"
	"github.com/smallbiznis/renewly/internal/pipeline"
)

type createBatchRequest struct {
	SourceLabel string                 `json:"source_label"`
	Members     []pipeline.MemberInput `json:"members" binding:"dive"`
}

func (s *Server) CreateBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenantID, tenantName := tenantFromContext(c)
	if tenantName == "" {
		AbortWithError(c, newValidationError("tenant_name", "required", "X-Tenant-Name header is required"))
		return
	}

	records, err := pipeline.ToRecords(req.Members)
	if err != nil {
		s.respondRunFailure(c, err)
		return
	}

	res, err := s.pipeline.Run(c.Request.Context(), pipeline.RunRequest{
		Tenant:      pipeline.Tenant{ID: tenantID, Name: tenantName},
		SourceLabel: strings.TrimSpace(req.SourceLabel),
		Members:     records,
	})
	if err != nil {
		s.respondRunFailure(c, err)
		return
	}
	c.Set(obstracing.ContextKeyBatchID, res.BatchID)

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"batch_id":         res.BatchID,
		"reference_date":   calendar.FormatISODate(res.ReferenceDate),
		"total_rows":       res.TotalRows,
		"member_count":     res.MemberCount,
		"excluded":         res.Excluded,
		"tier_counts":      res.TierCounts,
		"messages":         res.Messages,
		"history_recorded": res.HistoryRecorded,
	})
}

// respondRunFailure keeps the run envelope for pipeline errors while still
// handing the error to the request logger.
func (s *Server) respondRunFailure(c *gin.Context, err error) {
	_ = c.Error(err)
	status, payload := mapError(err)
	detail := payload.Message
	if len(payload.Errors) > 0 {
		detail = payload.Errors[0].Message
	}
	body := gin.H{
		"success":      false,
		"error_type":   payload.Type,
		"error_detail": detail,
	}
	if stage := pipeline.StageOf(err); stage != "" {
		c.Set(obstracing.ContextKeyPipelineStage, stage)
		body["stage"] = stage
	}
	c.JSON(status, body)
}

func (s *Server) GetLatestBatch(c *gin.Context) {
	tenantID, _ := tenantFromContext(c)
	batchID, ok, err := s.store.GetLatestBatchID(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	batch, err := s.store.GetBatch(c.Request.Context(), tenantID, batchID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": batch})
}

func (s *Server) GetBatch(c *gin.Context) {
	tenantID, _ := tenantFromContext(c)
	batch, err := s.store.GetBatch(c.Request.Context(), tenantID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": batch})
}

func (s *Server) ListBatchMessages(c *gin.Context) {
	tier, err := parseOptionalTier(c.Query("tier"))
	if err != nil {
		AbortWithError(c, newValidationError("tier", "invalid_tier", "tier must be one of 1, 3, 7, 30"))
		return
	}

	tenantID, _ := tenantFromContext(c)
	batchID := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()

	var resp any
	if tier != nil {
		resp, err = s.store.ListByTier(ctx, tenantID, batchID, *tier)
	} else {
		resp, err = s.store.GetByBatch(ctx, tenantID, batchID)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBatchTierCounts(c *gin.Context) {
	tenantID, _ := tenantFromContext(c)
	counts, err := s.store.GetTierCounts(c.Request.Context(), tenantID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": counts, "total": counts.Total()})
}
