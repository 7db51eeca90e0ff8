package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/internal/middleware"
	"github.com/huangang/issuetrack/internal/services"
	"github.com/huangang/issuetrack/pkg/response"
)

// ProjectMemberHandler lists and adds project members.
type ProjectMemberHandler struct {
	projectService *services.ProjectService
}

func NewProjectMemberHandler(projectService *services.ProjectService) *ProjectMemberHandler {
	return &ProjectMemberHandler{projectService: projectService}
}

// List returns all members of a project.
func (h *ProjectMemberHandler) List(c *gin.Context) {
	members, err := h.projectService.ListMembers(c.Request.Context(), middleware.CurrentProject(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// Add grants a user access to the project.
func (h *ProjectMemberHandler) Add(c *gin.Context) {
	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id is required")
		return
	}

	project := middleware.CurrentProject(c)
	user, err := h.projectService.AddMember(c.Request.Context(), middleware.CurrentActor(c), project.ID, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"project_id": project.ID, "user": user})
}
