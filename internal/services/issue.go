package services

import (
	"context"
	"errors"
	"strings"

	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/pkg/response"
	"gorm.io/gorm"
)

type IssueService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewIssueService(db *gorm.DB, audit *AuditService) *IssueService {
	return &IssueService{db: db, audit: audit}
}

type CreateIssueRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Status      string `json:"status" binding:"required"`
}

type UpdateIssueRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// List returns the project's issues in insertion order.
func (s *IssueService) List(ctx context.Context, projectID uint) ([]models.Issue, error) {
	var issues []models.Issue
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

func (s *IssueService) GetByID(ctx context.Context, projectID, issueID uint) (*models.Issue, error) {
	var issue models.Issue
	if err := loadIssue(s.db.WithContext(ctx), projectID, issueID, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (s *IssueService) Create(ctx context.Context, actor *Actor, projectID uint, req *CreateIssueRequest) (*models.Issue, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, response.NewBadRequest("title is required")
	}

	issue := models.Issue{
		Title:       title,
		Description: req.Description,
		Status:      strings.TrimSpace(req.Status),
		ProjectID:   projectID,
	}

	err := s.audit.Track(ctx, actor, MutationInsert, EntityIssue, func(tx *gorm.DB) (uint, error) {
		var project models.Project
		if err := loadProject(tx, projectID, &project); err != nil {
			return 0, err
		}
		if err := tx.Create(&issue).Error; err != nil {
			return 0, err
		}
		return issue.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (s *IssueService) Update(ctx context.Context, actor *Actor, projectID, issueID uint, req *UpdateIssueRequest) (*models.Issue, error) {
	updates := make(map[string]interface{})
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, response.NewBadRequest("title cannot be empty")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = strings.TrimSpace(*req.Status)
	}
	if len(updates) == 0 {
		return nil, response.NewBadRequest("no fields to update")
	}

	var issue models.Issue
	err := s.audit.Track(ctx, actor, MutationUpdate, EntityIssue, func(tx *gorm.DB) (uint, error) {
		if err := loadIssue(tx, projectID, issueID, &issue); err != nil {
			return 0, err
		}
		if err := tx.Model(&issue).Updates(updates).Error; err != nil {
			return 0, err
		}
		return issue.ID, tx.First(&issue, issue.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// Delete removes the issue and its comments.
func (s *IssueService) Delete(ctx context.Context, actor *Actor, projectID, issueID uint) error {
	return s.audit.Track(ctx, actor, MutationDelete, EntityIssue, func(tx *gorm.DB) (uint, error) {
		var issue models.Issue
		if err := loadIssue(tx, projectID, issueID, &issue); err != nil {
			return 0, err
		}
		n, err := deleteIssues(tx, []uint{issue.ID})
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, response.NewNotFound("issue not found")
		}
		return issue.ID, nil
	})
}

// loadIssue only finds issues that belong to projectID.
func loadIssue(tx *gorm.DB, projectID, issueID uint, issue *models.Issue) error {
	if err := tx.Where("project_id = ?", projectID).First(issue, issueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("issue not found")
		}
		return err
	}
	return nil
}
