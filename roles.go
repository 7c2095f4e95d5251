package users

import "strings"

// UserRole is an ordered privilege level. The string form is the
// canonical upper-case token embedded in access token claims.
type UserRole string

const (
	// RoleAnonymous is an unauthenticated principal (i.e. view public)
	RoleAnonymous UserRole = "ANONYMOUS"
	// RoleAuthenticated is a regular signed-up account, the default at creation
	RoleAuthenticated UserRole = "AUTHENTICATED"
	// RoleManager can administer content and unlock accounts
	RoleManager UserRole = "MANAGER"
	// RoleAdmin can do everything, including role assignment
	RoleAdmin UserRole = "ADMIN"
)

var roleHierarchy = map[UserRole]int{
	RoleAnonymous:     0,
	RoleAuthenticated: 1,
	RoleManager:       2,
	RoleAdmin:         3,
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// Level returns the role's position in the privilege order. Unknown
// roles sort below ANONYMOUS.
func (r UserRole) Level() int {
	if level, ok := roleHierarchy[r]; ok {
		return level
	}
	return -1
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	if !r.IsValid() || !minRole.IsValid() {
		return false
	}
	return r.Level() >= minRole.Level()
}

// String returns the canonical claim representation
func (r UserRole) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleAnonymous,
		RoleAuthenticated,
		RoleManager,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type, normalizing
// case so stored and wire representations stay canonical.
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(normalizeRole(roleStr))
	return role, role.IsValid()
}

func normalizeRole(roleStr string) string {
	return strings.ToUpper(strings.TrimSpace(roleStr))
}
