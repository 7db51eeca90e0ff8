package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/internal/middleware"
	"github.com/huangang/issuetrack/internal/services"
	"github.com/huangang/issuetrack/pkg/response"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List returns the projects visible to the caller.
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.ListForUser(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projectService.GetByID(c.Request.Context(), middleware.CurrentProject(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	owner := middleware.CurrentUser(c)
	project, err := h.projectService.Create(c.Request.Context(), middleware.CurrentActor(c), owner.ID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), middleware.CurrentActor(c), middleware.CurrentProject(c).ID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Delete removes the project with its issues, comments and memberships.
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projectService.Delete(c.Request.Context(), middleware.CurrentActor(c), middleware.CurrentProject(c).ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "project deleted"})
}
