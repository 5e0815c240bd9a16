package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleUser:      0,
		RoleGuide:     1,
		RoleLeadGuide: 2,
		RoleAdmin:     3,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleGuide,
		RoleLeadGuide,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}

// RoleGuard is a capability check over a fixed set of allowed roles.
// It must run after the auth middleware has attached claims: checking
// an empty identity is a middleware ordering bug, not a client error.
type RoleGuard struct {
	allowed map[UserRole]struct{}
}

// NewRoleGuard builds a guard for the given allowed roles.
func NewRoleGuard(roles ...UserRole) *RoleGuard {
	allowed := make(map[UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return &RoleGuard{allowed: allowed}
}

// Allows reports whether the given role is in the allowed set.
func (g *RoleGuard) Allows(role UserRole) bool {
	_, ok := g.allowed[role]
	return ok
}

// Check validates the role carried by the given claims.
func (g *RoleGuard) Check(claims AuthClaims) error {
	if claims == nil {
		return goerrors.New("role guard invoked without authenticated claims", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal).
			WithTextCode("GUARD_BEFORE_AUTH")
	}

	if !g.Allows(UserRole(claims.Role())) {
		return ErrForbidden.Clone().WithMetadata(map[string]any{
			"role": claims.Role(),
		})
	}

	return nil
}
