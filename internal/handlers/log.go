package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/internal/services"
	"github.com/huangang/issuetrack/pkg/response"
)

type LogHandler struct {
	logService *services.LogService
}

func NewLogHandler(logService *services.LogService) *LogHandler {
	return &LogHandler{logService: logService}
}

// List returns audit entries newest first.
// GET /api/logs?limit=N
// GET /api/logs/:count
func (h *LogHandler) List(c *gin.Context) {
	var req services.LogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "limit must be a positive integer")
		return
	}

	if raw := c.Param("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(c, "count must be a positive integer")
			return
		}
		req.Limit = &count
	}

	entries, err := h.logService.List(c.Request.Context(), req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}
