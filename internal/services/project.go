package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewProjectService(db *gorm.DB, audit *AuditService) *ProjectService {
	return &ProjectService{db: db, audit: audit}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type AddMemberRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// ListForUser returns every project for an ADMIN, otherwise the projects the
// user owns or belongs to.
func (s *ProjectService) ListForUser(ctx context.Context, user *models.User) ([]models.Project, error) {
	query := s.db.WithContext(ctx).Model(&models.Project{})
	if user.Role != models.RoleAdmin {
		memberOf := s.db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", user.ID)
		query = query.Where("owner_id = ? OR id IN (?)", user.ID, memberOf)
	}

	var projects []models.Project
	if err := query.Order("id ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// GetByID returns the project with its owner, members and issues.
func (s *ProjectService) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("users.id ASC") }).
		Preload("Issues", func(db *gorm.DB) *gorm.DB { return db.Order("issues.id ASC") }).
		First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound(ReasonProjectNotFound)
		}
		return nil, err
	}
	return &project, nil
}

// Create stores the project and adds its owner as the first member.
func (s *ProjectService) Create(ctx context.Context, actor *Actor, ownerID uint, req *CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewBadRequest("name is required")
	}

	project := models.Project{
		Name:        name,
		Description: req.Description,
		OwnerID:     ownerID,
	}

	err := s.audit.Track(ctx, actor, MutationInsert, EntityProject, func(tx *gorm.DB) (uint, error) {
		if err := tx.Create(&project).Error; err != nil {
			return 0, err
		}
		member := models.ProjectMember{ProjectID: project.ID, UserID: ownerID}
		if err := tx.Create(&member).Error; err != nil {
			return 0, err
		}
		return project.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *ProjectService) Update(ctx context.Context, actor *Actor, id uint, req *UpdateProjectRequest) (*models.Project, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, response.NewBadRequest("name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return nil, response.NewBadRequest("no fields to update")
	}

	var project models.Project
	err := s.audit.Track(ctx, actor, MutationUpdate, EntityProject, func(tx *gorm.DB) (uint, error) {
		if err := loadProject(tx, id, &project); err != nil {
			return 0, err
		}
		if err := tx.Model(&project).Updates(updates).Error; err != nil {
			return 0, err
		}
		return project.ID, tx.First(&project, project.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Delete removes the project with its issues, their comments and its
// memberships. Only the project deletion itself is logged.
func (s *ProjectService) Delete(ctx context.Context, actor *Actor, id uint) error {
	return s.audit.Track(ctx, actor, MutationDelete, EntityProject, func(tx *gorm.DB) (uint, error) {
		var project models.Project
		if err := loadProject(tx, id, &project); err != nil {
			return 0, err
		}
		n, err := deleteProjects(tx, []uint{project.ID})
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, response.NewNotFound(ReasonProjectNotFound)
		}
		return project.ID, nil
	})
}

// AddMember grants userID access to the project. It is logged as an update
// of the project.
func (s *ProjectService) AddMember(ctx context.Context, actor *Actor, projectID, userID uint) (*models.User, error) {
	var user models.User
	err := s.audit.Track(ctx, actor, MutationUpdate, EntityProject, func(tx *gorm.DB) (uint, error) {
		var project models.Project
		if err := loadProject(tx, projectID, &project); err != nil {
			return 0, err
		}
		if err := loadUser(tx, userID, &user); err != nil {
			return 0, err
		}

		member, err := isMember(tx, project.ID, user.ID)
		if err != nil {
			return 0, err
		}
		if member {
			return 0, response.NewBadRequest("user is already a member of this project")
		}

		if err := tx.Create(&models.ProjectMember{ProjectID: project.ID, UserID: user.ID}).Error; err != nil {
			return 0, duplicateAs(err, "user is already a member of this project")
		}
		if err := tx.Model(&project).Update("updated_at", time.Now()).Error; err != nil {
			return 0, err
		}
		return project.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListMembers returns the project's members ordered by user ID.
func (s *ProjectService) ListMembers(ctx context.Context, projectID uint) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN project_members ON project_members.user_id = users.id").
		Where("project_members.project_id = ?", projectID).
		Order("users.id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func loadProject(tx *gorm.DB, id uint, project *models.Project) error {
	if err := tx.First(project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound(ReasonProjectNotFound)
		}
		return err
	}
	return nil
}
