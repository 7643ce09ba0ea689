package services

import "dm-go/internal/models"

// CallerContext is the verified identity behind a request.
type CallerContext struct {
	UserID string
	Role   models.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (c CallerContext) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// authorize rejects admin-path calls from non-admin callers.
func (c CallerContext) authorize(asAdmin bool) error {
	if asAdmin && !c.IsAdmin() {
		return ErrPermissionDenied
	}
	return nil
}
