package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/renewly/pkg/db/pagination"
)

func (s *Server) ListUploads(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenantID, _ := tenantFromContext(c)
	resp, err := s.history.List(c.Request.Context(), tenantID, query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":            resp.Uploads,
		"next_page_token": resp.NextPageToken,
		"has_more":        resp.HasMore,
	})
}
