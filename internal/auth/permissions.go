package auth

import (
	"errors"
	"slices"
)

// Role is an authorisation tier carried in the token.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	return slices.Contains(ValidRoles, r)
}

// Permission is a named capability.
type Permission string

const (
	PermLightRead      Permission = "light:read"
	PermLightOperate   Permission = "light:operate"
	PermLightConfigure Permission = "light:configure"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermLightRead,
	},
	RoleOperator: {
		PermLightRead,
		PermLightOperate,
	},
	RoleAdmin: {
		PermLightRead,
		PermLightOperate,
		PermLightConfigure,
	},
}

// Errors returned by token parsing.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
