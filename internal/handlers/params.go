package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/pkg/response"
)

// pathID parses a positive numeric path parameter.
func pathID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, response.NewBadRequest("invalid " + name)
	}
	return uint(id), nil
}
