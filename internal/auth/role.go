package auth

import "strings"

// Role is the capability tag carried in every token.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDistrictHead Role = "districthead"
	RolePrincipal    Role = "school"
	RoleTeacher      Role = "teacher"
	RoleParent       Role = "parent"
)

// Roles lists every known role in a stable order.
var Roles = []Role{RoleAdmin, RoleDistrictHead, RolePrincipal, RoleTeacher, RoleParent}

// ParseRole maps a login type tag to a Role.
func ParseRole(tag string) (Role, bool) {
	role := Role(strings.TrimSpace(tag))
	return role, role.Valid()
}

// Valid reports whether r is one of the five known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDistrictHead, RolePrincipal, RoleTeacher, RoleParent:
		return true
	default:
		return false
	}
}

// Title is the human label used in access-denied and not-found messages.
func (r Role) Title() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleDistrictHead:
		return "District Head"
	case RolePrincipal:
		return "School"
	case RoleTeacher:
		return "Teacher"
	case RoleParent:
		return "Parent"
	default:
		return string(r)
	}
}
