package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangang/issuetrack/internal/metrics"
	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/internal/utils"
	"github.com/huangang/issuetrack/pkg/response"
	"gorm.io/gorm"
)

// DenyKind classifies why a guard rejected a request.
type DenyKind int

const (
	DenyNone DenyKind = iota
	DenyUnauthenticated
	DenyRoleMismatch
	DenyAccessForbidden
	DenyResourceNotFound
)

func (k DenyKind) String() string {
	switch k {
	case DenyNone:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyRoleMismatch:
		return "role_mismatch"
	case DenyAccessForbidden:
		return "access_forbidden"
	case DenyResourceNotFound:
		return "resource_not_found"
	}
	return "unknown"
}

const (
	ReasonIdentityNotFound = "identity not found"
	ReasonRoleMismatch     = "permission denied"
	ReasonAccessForbidden  = "access forbidden"
	ReasonProjectNotFound  = "project not found"
)

// Guard is the conjunction of checks a route declares. A zero Role skips the
// role check; a nil ProjectID skips the resource check.
type Guard struct {
	Role      models.Role
	ProjectID *uint
}

func (g Guard) name() string {
	switch {
	case g.Role != "" && g.ProjectID != nil:
		return "role+resource"
	case g.Role != "":
		return "role"
	case g.ProjectID != nil:
		return "resource"
	}
	return "identity"
}

// Decision is the outcome of a guard evaluation. Identity is set whenever the
// caller was resolved; Project is set whenever the guarded project was loaded.
type Decision struct {
	Allowed  bool
	Kind     DenyKind
	Reason   string
	Identity *models.User
	Project  *models.Project
}

func allow(identity *models.User, project *models.Project) Decision {
	return Decision{Allowed: true, Kind: DenyNone, Identity: identity, Project: project}
}

func deny(kind DenyKind, reason string, identity *models.User, project *models.Project) Decision {
	return Decision{Kind: kind, Reason: reason, Identity: identity, Project: project}
}

// Err converts a deny into the matching *response.AppError, or nil on allow.
func (d Decision) Err() error {
	switch d.Kind {
	case DenyNone:
		return nil
	case DenyUnauthenticated:
		return response.NewUnauthorized(d.Reason)
	case DenyRoleMismatch:
		return response.NewRoleMismatch(d.Reason)
	case DenyAccessForbidden:
		return response.NewForbidden(d.Reason)
	case DenyResourceNotFound:
		return response.NewNotFound(d.Reason)
	}
	return response.NewServerError(fmt.Sprintf("unknown deny kind %d", d.Kind))
}

// Authorizer evaluates role and project access guards. It only reads from the
// database and is safe for concurrent use.
type Authorizer struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

func NewAuthorizer(db *gorm.DB, m *metrics.Metrics) *Authorizer {
	return &Authorizer{db: db, metrics: m}
}

// Authorize checks the role guard alone.
func (a *Authorizer) Authorize(ctx context.Context, claims *utils.Claims, required models.Role) (Decision, error) {
	return a.Evaluate(ctx, claims, Guard{Role: required})
}

// AuthorizeResourceAccess checks that the caller owns or belongs to the project.
func (a *Authorizer) AuthorizeResourceAccess(ctx context.Context, claims *utils.Claims, projectID uint) (Decision, error) {
	return a.Evaluate(ctx, claims, Guard{ProjectID: &projectID})
}

// Evaluate resolves the identity, then checks the role, then the project.
// The first failing step decides the outcome and later steps are not run, so
// a role mismatch never triggers a project lookup.
func (a *Authorizer) Evaluate(ctx context.Context, claims *utils.Claims, g Guard) (Decision, error) {
	d, err := a.evaluate(ctx, claims, g)
	if err != nil {
		return d, err
	}
	a.metrics.ObserveDecision(g.name(), d.Kind.String())
	return d, nil
}

func (a *Authorizer) evaluate(ctx context.Context, claims *utils.Claims, g Guard) (Decision, error) {
	db := a.db.WithContext(ctx)

	identity, err := resolveIdentity(db, claims)
	if err != nil {
		return Decision{}, err
	}
	if identity == nil {
		return deny(DenyUnauthenticated, ReasonIdentityNotFound, nil, nil), nil
	}

	if g.Role != "" && !identity.Role.Satisfies(g.Role) {
		return deny(DenyRoleMismatch, ReasonRoleMismatch, identity, nil), nil
	}

	if g.ProjectID == nil {
		return allow(identity, nil), nil
	}

	project, err := findProject(db, *g.ProjectID)
	if err != nil {
		return Decision{}, err
	}
	if project == nil {
		return deny(DenyResourceNotFound, ReasonProjectNotFound, identity, nil), nil
	}

	ok, err := hasProjectAccess(db, project, identity.ID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return deny(DenyAccessForbidden, ReasonAccessForbidden, identity, project), nil
	}
	return allow(identity, project), nil
}

// AuthorizeMembershipChange allows ADMIN, PROJECT_MANAGER, or the project's
// owner to change the member list.
func (a *Authorizer) AuthorizeMembershipChange(ctx context.Context, claims *utils.Claims, projectID uint) (Decision, error) {
	db := a.db.WithContext(ctx)

	identity, err := resolveIdentity(db, claims)
	if err != nil {
		return Decision{}, err
	}
	if identity == nil {
		a.metrics.ObserveDecision("membership", DenyUnauthenticated.String())
		return deny(DenyUnauthenticated, ReasonIdentityNotFound, nil, nil), nil
	}

	project, err := findProject(db, projectID)
	if err != nil {
		return Decision{}, err
	}
	if project == nil {
		a.metrics.ObserveDecision("membership", DenyResourceNotFound.String())
		return deny(DenyResourceNotFound, ReasonProjectNotFound, identity, nil), nil
	}

	if identity.Role == models.RoleAdmin || identity.Role == models.RoleProjectManager || project.IsOwnedBy(identity.ID) {
		a.metrics.ObserveDecision("membership", DenyNone.String())
		return allow(identity, project), nil
	}
	a.metrics.ObserveDecision("membership", DenyAccessForbidden.String())
	return deny(DenyAccessForbidden, ReasonAccessForbidden, identity, project), nil
}

// resolveIdentity returns nil, nil when the claims do not name a stored user,
// including a user re-created under the same username after the token was
// issued.
func resolveIdentity(db *gorm.DB, claims *utils.Claims) (*models.User, error) {
	if claims == nil {
		return nil, nil
	}
	return findUser(db, claims.Username, claims.UserID)
}

// findUser resolves username and, when userID is set, requires the stored row
// to carry that id.
func findUser(db *gorm.DB, username string, userID uint) (*models.User, error) {
	user, err := findUserByUsername(db, username)
	if err != nil || user == nil {
		return nil, err
	}
	if userID != 0 && user.ID != userID {
		return nil, nil
	}
	return user, nil
}

func findUserByUsername(db *gorm.DB, username string) (*models.User, error) {
	if username == "" {
		return nil, nil
	}
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func findProject(db *gorm.DB, id uint) (*models.Project, error) {
	var project models.Project
	if err := db.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

func hasProjectAccess(db *gorm.DB, project *models.Project, userID uint) (bool, error) {
	if project.IsOwnedBy(userID) {
		return true, nil
	}
	return isMember(db, project.ID, userID)
}

func isMember(db *gorm.DB, projectID, userID uint) (bool, error) {
	var count int64
	err := db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}
