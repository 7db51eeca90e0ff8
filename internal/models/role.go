package models

import (
	"errors"
	"strings"
)

// Role is a user's global privilege level.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleProjectManager Role = "PROJECT_MANAGER"
	RoleMember         Role = "MEMBER"
)

var ErrInvalidRole = errors.New("invalid role")

// Roles lists every accepted role value.
var Roles = []Role{RoleAdmin, RoleProjectManager, RoleMember}

// ParseRole accepts only the enumerated role names. Surrounding whitespace is
// ignored; case is not.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleMember:
		return true
	}
	return false
}

// Satisfies reports whether r passes a guard that requires the given role.
// ADMIN passes every guard; other roles only pass their own.
func (r Role) Satisfies(required Role) bool {
	return r == required || r == RoleAdmin
}

func (r Role) String() string { return string(r) }
