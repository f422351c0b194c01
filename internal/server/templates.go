package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/renewly/internal/calendar"
)

type setTemplateRequest struct {
	Body string `json:"body" binding:"required"`
}

func (s *Server) ListTemplates(c *gin.Context) {
	tenantID, _ := tenantFromContext(c)
	resp, err := s.templates.ListTemplates(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetTemplate(c *gin.Context) {
	tier, ok := s.tierParam(c)
	if !ok {
		return
	}

	var req setTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenantID, _ := tenantFromContext(c)
	resp, err := s.templates.SetTemplate(c.Request.Context(), tenantID, tier, req.Body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResetTemplate(c *gin.Context) {
	tier, ok := s.tierParam(c)
	if !ok {
		return
	}

	tenantID, _ := tenantFromContext(c)
	resp, err := s.templates.ResetTemplate(c.Request.Context(), tenantID, tier)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PreviewTemplate(c *gin.Context) {
	tier, ok := s.tierParam(c)
	if !ok {
		return
	}

	tenantID, tenantName := tenantFromContext(c)
	resp, err := s.templates.Preview(c.Request.Context(), tenantID, tenantName, tier)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) tierParam(c *gin.Context) (calendar.Tier, bool) {
	tier, err := parseTier(c.Param("tier"))
	if err != nil {
		AbortWithError(c, newValidationError("tier", "invalid_tier", "tier must be one of 1, 3, 7, 30"))
		return calendar.TierExcluded, false
	}
	return tier, true
}
