package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/internal/services"
	"github.com/huangang/issuetrack/internal/utils"
	"github.com/huangang/issuetrack/pkg/logger"
	"github.com/huangang/issuetrack/pkg/response"
)

const (
	ContextClaims   = "claims"
	ContextUserID   = "user_id"
	ContextUsername = logger.UsernameKey
	ContextIdentity = "identity"
	ContextProject  = "project"
)

// AuthRequired verifies the bearer token and stores its claims. Whether the
// named user still exists is decided later by the guards.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, response.NewUnauthorized("authorization header required"))
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			response.Abort(c, response.NewUnauthorized("invalid authorization header format"))
			return
		}

		claims, err := utils.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Abort(c, response.NewUnauthorized("invalid or expired token"))
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)

		c.Next()
	}
}

// Guards turns Authorizer decisions into route middleware. Each guard runs
// after AuthRequired and, on success, stores the stored user and the guarded
// project in the context.
type Guards struct {
	authz *services.Authorizer
}

func NewGuards(authz *services.Authorizer) *Guards {
	return &Guards{authz: authz}
}

// RequireIdentity admits any caller whose token names a stored user.
func (g *Guards) RequireIdentity() gin.HandlerFunc {
	return g.guard("", "", false)
}

// RequireRole admits callers holding role, or ADMIN.
func (g *Guards) RequireRole(role models.Role) gin.HandlerFunc {
	return g.guard(role, "", false)
}

// RequireProjectAccess admits the owner or a member of the project named by
// the path parameter param.
func (g *Guards) RequireProjectAccess(param string) gin.HandlerFunc {
	return g.guard("", param, false)
}

// RequireRoleAndProjectAccess combines both checks. The role is checked first.
func (g *Guards) RequireRoleAndProjectAccess(role models.Role, param string) gin.HandlerFunc {
	return g.guard(role, param, false)
}

// RequireMembershipChange admits ADMIN, PROJECT_MANAGER or the project's owner.
func (g *Guards) RequireMembershipChange(param string) gin.HandlerFunc {
	return g.guard("", param, true)
}

func (g *Guards) guard(role models.Role, param string, membership bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		guard := services.Guard{Role: role}
		if param != "" {
			id, err := strconv.ParseUint(c.Param(param), 10, 64)
			if err != nil || id == 0 {
				response.Abort(c, response.NewBadRequest("invalid project id"))
				return
			}
			projectID := uint(id)
			guard.ProjectID = &projectID
		}

		var (
			d   services.Decision
			err error
		)
		if membership {
			d, err = g.authz.AuthorizeMembershipChange(c.Request.Context(), GetClaims(c), *guard.ProjectID)
		} else {
			d, err = g.authz.Evaluate(c.Request.Context(), GetClaims(c), guard)
		}
		if err != nil {
			response.Abort(c, err)
			return
		}
		if !d.Allowed {
			response.Abort(c, d.Err())
			return
		}

		c.Set(ContextIdentity, d.Identity)
		if d.Project != nil {
			c.Set(ContextProject, d.Project)
		}
		c.Next()
	}
}

// GetClaims returns the verified token claims, or nil before AuthRequired.
func GetClaims(c *gin.Context) *utils.Claims {
	if v, exists := c.Get(ContextClaims); exists {
		if claims, ok := v.(*utils.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		return id.(uint)
	}
	return 0
}

// GetUsername gets the current username from context
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

// CurrentUser returns the stored user resolved by a guard.
func CurrentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(ContextIdentity); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentProject returns the project loaded by a project guard.
func CurrentProject(c *gin.Context) *models.Project {
	if v, exists := c.Get(ContextProject); exists {
		if project, ok := v.(*models.Project); ok {
			return project
		}
	}
	return nil
}

// CurrentActor names the caller for audited mutations.
func CurrentActor(c *gin.Context) *services.Actor {
	username := GetUsername(c)
	if username == "" {
		return nil
	}
	return &services.Actor{UserID: GetUserID(c), Username: username}
}
