package services

import (
	"context"
	"errors"
	"time"

	"github.com/huangang/issuetrack/internal/config"
	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/internal/utils"
	"github.com/huangang/issuetrack/pkg/logger"
	"github.com/huangang/issuetrack/pkg/response"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	audit     *AuditService
	jwtConfig *config.JWTConfig
}

func NewAuthService(db *gorm.DB, audit *AuditService, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{
		db:        db,
		audit:     audit,
		jwtConfig: jwtCfg,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string       `json:"access_token"`
	User     *models.User `json:"user"`
	ExpireAt time.Time    `json:"expire_at"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=72"`
}

var errInvalidCredentials = response.NewUnauthorized("invalid credentials")

// Login checks the password and issues an access token.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := findUserByUsername(s.db.WithContext(ctx), req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil || !utils.CheckPassword(req.Password, user.Password) {
		return nil, errInvalidCredentials
	}

	hours := s.jwtConfig.ExpireHour
	token, err := utils.GenerateToken(user.ID, user.Username, user.Role.String(), hours)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Token:    token,
		User:     user,
		ExpireAt: time.Now().Add(time.Duration(hours) * time.Hour),
	}, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// CreateAdminIfNotExists creates the configured admin account when no ADMIN
// exists yet.
func (s *AuthService) CreateAdminIfNotExists(ctx context.Context, cfg *config.AdminConfig) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := utils.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	admin := models.User{
		Name:     "Administrator",
		Username: cfg.Username,
		Email:    cfg.Email,
		Password: hashedPassword,
		Role:     models.RoleAdmin,
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}

	logger.Info().Str("username", admin.Username).Msg("default admin account created")
	return nil
}

// ChangePassword is a tracked update of the caller's own account.
func (s *AuthService) ChangePassword(ctx context.Context, actor *Actor, userID uint, req *ChangePasswordRequest) error {
	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	return s.audit.Track(ctx, actor, MutationUpdate, EntityUser, func(tx *gorm.DB) (uint, error) {
		var user models.User
		if err := loadUser(tx, userID, &user); err != nil {
			return 0, err
		}
		if !utils.CheckPassword(req.OldPassword, user.Password) {
			return 0, response.NewBadRequest("incorrect old password")
		}
		if err := tx.Model(&user).Update("password", hashedPassword).Error; err != nil {
			return 0, err
		}
		return user.ID, nil
	})
}
