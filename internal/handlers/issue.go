package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/internal/middleware"
	"github.com/huangang/issuetrack/internal/services"
	"github.com/huangang/issuetrack/pkg/response"
)

type IssueHandler struct {
	issueService *services.IssueService
}

func NewIssueHandler(issueService *services.IssueService) *IssueHandler {
	return &IssueHandler{issueService: issueService}
}

func (h *IssueHandler) List(c *gin.Context) {
	issues, err := h.issueService.List(c.Request.Context(), middleware.CurrentProject(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, issues)
}

func (h *IssueHandler) Get(c *gin.Context) {
	issueID, err := pathID(c, "issue_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	issue, err := h.issueService.GetByID(c.Request.Context(), middleware.CurrentProject(c).ID, issueID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, issue)
}

func (h *IssueHandler) Create(c *gin.Context) {
	var req services.CreateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	issue, err := h.issueService.Create(c.Request.Context(), middleware.CurrentActor(c), middleware.CurrentProject(c).ID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issue)
}

func (h *IssueHandler) Update(c *gin.Context) {
	issueID, err := pathID(c, "issue_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req services.UpdateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	issue, err := h.issueService.Update(c.Request.Context(), middleware.CurrentActor(c), middleware.CurrentProject(c).ID, issueID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, issue)
}

func (h *IssueHandler) Delete(c *gin.Context) {
	issueID, err := pathID(c, "issue_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.issueService.Delete(c.Request.Context(), middleware.CurrentActor(c), middleware.CurrentProject(c).ID, issueID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "issue deleted"})
}
