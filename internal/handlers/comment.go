package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/internal/middleware"
	"github.com/huangang/issuetrack/internal/services"
	"github.com/huangang/issuetrack/pkg/response"
)

type CommentHandler struct {
	commentService *services.CommentService
}

func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

func (h *CommentHandler) List(c *gin.Context) {
	issueID, err := pathID(c, "issue_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	comments, err := h.commentService.List(c.Request.Context(), middleware.CurrentProject(c).ID, issueID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, comments)
}

func (h *CommentHandler) Create(c *gin.Context) {
	issueID, err := pathID(c, "issue_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req services.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content is required")
		return
	}

	author := middleware.CurrentUser(c)
	comment, err := h.commentService.Create(c.Request.Context(), middleware.CurrentActor(c), author.ID, middleware.CurrentProject(c).ID, issueID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// Update is allowed for the comment's author only.
func (h *CommentHandler) Update(c *gin.Context) {
	issueID, err := pathID(c, "issue_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	commentID, err := pathID(c, "comment_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req services.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content is required")
		return
	}

	comment, err := h.commentService.Update(c.Request.Context(), middleware.CurrentActor(c), middleware.CurrentUser(c),
		middleware.CurrentProject(c).ID, issueID, commentID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, comment)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	issueID, err := pathID(c, "issue_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	commentID, err := pathID(c, "comment_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	err = h.commentService.Delete(c.Request.Context(), middleware.CurrentActor(c), middleware.CurrentUser(c),
		middleware.CurrentProject(c).ID, issueID, commentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "comment deleted"})
}
