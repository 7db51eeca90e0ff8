package services

import (
	"context"
	"errors"
	"strings"

	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/pkg/response"
	"gorm.io/gorm"
)

type CommentService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewCommentService(db *gorm.DB, audit *AuditService) *CommentService {
	return &CommentService{db: db, audit: audit}
}

type CommentRequest struct {
	Content string `json:"content"`
}

var errNotCommentAuthor = response.NewForbidden("not authorized to modify this comment")

// List returns the issue's comments oldest first.
func (s *CommentService) List(ctx context.Context, projectID, issueID uint) ([]models.Comment, error) {
	db := s.db.WithContext(ctx)

	var issue models.Issue
	if err := loadIssue(db, projectID, issueID, &issue); err != nil {
		return nil, err
	}

	var comments []models.Comment
	if err := db.Where("issue_id = ?", issue.ID).Order("timestamp ASC").Order("id ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *CommentService) Create(ctx context.Context, actor *Actor, authorID, projectID, issueID uint, req *CommentRequest) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, response.NewBadRequest("content is required")
	}

	comment := models.Comment{
		Content: content,
		UserID:  authorID,
		IssueID: issueID,
	}

	err := s.audit.Track(ctx, actor, MutationInsert, EntityComment, func(tx *gorm.DB) (uint, error) {
		var issue models.Issue
		if err := loadIssue(tx, projectID, issueID, &issue); err != nil {
			return 0, err
		}
		if err := tx.Create(&comment).Error; err != nil {
			return 0, err
		}
		return comment.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// Update lets only the author edit the content.
func (s *CommentService) Update(ctx context.Context, actor *Actor, editor *models.User, projectID, issueID, commentID uint, req *CommentRequest) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, response.NewBadRequest("content is required")
	}

	var comment models.Comment
	err := s.audit.Track(ctx, actor, MutationUpdate, EntityComment, func(tx *gorm.DB) (uint, error) {
		if err := loadComment(tx, projectID, issueID, commentID, &comment); err != nil {
			return 0, err
		}
		if comment.UserID != editor.ID {
			return 0, errNotCommentAuthor
		}

		result := tx.Model(&comment).Update("content", content)
		if result.Error != nil {
			return 0, result.Error
		}
		// MySQL reports zero rows for an unchanged value, so reload to tell
		// that apart from a vanished row.
		if result.RowsAffected == 0 {
			if err := loadComment(tx, projectID, issueID, commentID, &comment); err != nil {
				return 0, err
			}
		}
		return comment.ID, tx.First(&comment, comment.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// Delete is allowed for the author and for ADMIN.
func (s *CommentService) Delete(ctx context.Context, actor *Actor, editor *models.User, projectID, issueID, commentID uint) error {
	return s.audit.Track(ctx, actor, MutationDelete, EntityComment, func(tx *gorm.DB) (uint, error) {
		var comment models.Comment
		if err := loadComment(tx, projectID, issueID, commentID, &comment); err != nil {
			return 0, err
		}
		if comment.UserID != editor.ID && editor.Role != models.RoleAdmin {
			return 0, errNotCommentAuthor
		}

		result := tx.Delete(&models.Comment{}, comment.ID)
		if result.Error != nil {
			return 0, result.Error
		}
		if result.RowsAffected == 0 {
			return 0, response.NewNotFound("comment not found")
		}
		return comment.ID, nil
	})
}

func loadComment(db *gorm.DB, projectID, issueID, commentID uint, comment *models.Comment) error {
	var issue models.Issue
	if err := loadIssue(db, projectID, issueID, &issue); err != nil {
		return err
	}
	if err := db.Where("issue_id = ?", issue.ID).First(comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("comment not found")
		}
		return err
	}
	return nil
}
