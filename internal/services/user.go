package services

import (
	"context"
	"errors"
	"strings"

	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/internal/utils"
	"github.com/huangang/issuetrack/pkg/response"
	"gorm.io/gorm"
)

type UserService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewUserService(db *gorm.DB, audit *AuditService) *UserService {
	return &UserService{db: db, audit: audit}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type ChangeRoleRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

// Register creates a MEMBER account. Registration is not audited.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" {
		return nil, response.NewBadRequest("username is required")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Username: username,
		Email:    email,
		Password: hashed,
		Role:     models.RoleMember,
	}

	err = s.audit.Track(ctx, nil, MutationInsert, EntityUser, func(tx *gorm.DB) (uint, error) {
		if err := checkUnique(tx, "username", username, 0); err != nil {
			return 0, err
		}
		if err := checkUnique(tx, "email", email, 0); err != nil {
			return 0, err
		}
		if err := tx.Create(&user).Error; err != nil {
			return 0, duplicateAs(err, "username or email already exists")
		}
		return user.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername returns the user or a not-found AppError.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := findUserByUsername(s.db.WithContext(ctx), username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, response.NewNotFound("user not found")
	}
	return user, nil
}

// UpdateProfile changes the caller's own name or email.
func (s *UserService) UpdateProfile(ctx context.Context, actor *Actor, userID uint, req *UpdateProfileRequest) (*models.User, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if len(updates) == 0 {
		return nil, response.NewBadRequest("no fields to update")
	}

	var user models.User
	err := s.audit.Track(ctx, actor, MutationUpdate, EntityUser, func(tx *gorm.DB) (uint, error) {
		if err := loadUser(tx, userID, &user); err != nil {
			return 0, err
		}
		if email, ok := updates["email"].(string); ok {
			if err := checkUnique(tx, "email", email, user.ID); err != nil {
				return 0, err
			}
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return 0, duplicateAs(err, "email already exists")
		}
		return user.ID, tx.First(&user, user.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangeRole sets a user's role. Values outside the role enumeration are
// rejected before anything is written.
func (s *UserService) ChangeRole(ctx context.Context, actor *Actor, req *ChangeRoleRequest) (*models.User, error) {
	if req.UserID == 0 {
		return nil, response.NewBadRequest("user_id is required")
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return nil, response.NewBadRequest("invalid role")
	}

	var user models.User
	err = s.audit.Track(ctx, actor, MutationUpdate, EntityUser, func(tx *gorm.DB) (uint, error) {
		if err := loadUser(tx, req.UserID, &user); err != nil {
			return 0, err
		}
		if err := tx.Model(&user).Update("role", role).Error; err != nil {
			return 0, err
		}
		return user.ID, tx.First(&user, user.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes targetID and everything it owns. Users cannot delete
// themselves.
func (s *UserService) Delete(ctx context.Context, actor *Actor, actorID, targetID uint) error {
	if actorID == targetID {
		return response.NewBadRequest("cannot delete your own account")
	}

	return s.audit.Track(ctx, actor, MutationDelete, EntityUser, func(tx *gorm.DB) (uint, error) {
		var user models.User
		if err := loadUser(tx, targetID, &user); err != nil {
			return 0, err
		}
		n, err := deleteUser(tx, user.ID)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, response.NewNotFound("user not found")
		}
		return user.ID, nil
	})
}

func loadUser(tx *gorm.DB, id uint, user *models.User) error {
	if err := tx.First(user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("user not found")
		}
		return err
	}
	return nil
}

// checkUnique rejects value if another user already holds it in column.
func checkUnique(tx *gorm.DB, column, value string, exceptID uint) error {
	var count int64
	query := tx.Model(&models.User{}).Where(column+" = ?", value)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return response.NewBadRequest(column + " already exists")
	}
	return nil
}

// duplicateAs reports a unique constraint violation that slipped past a
// check-then-write as a validation failure.
func duplicateAs(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return response.NewBadRequest(msg)
	}
	return err
}
