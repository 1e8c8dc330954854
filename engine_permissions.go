package authcore

import (
	"context"

	"github.com/hexfold/authcore/permission"
)

// ResolvePrincipal builds the per-request [Principal] for a user: role
// level and permission set come from the role registry, the stamp from the
// session claims. An empty userID yields the unauthenticated principal.
func (e *Engine) ResolvePrincipal(userID, roleName, securityStamp string) *Principal {
	p := &Principal{
		UserID:        userID,
		RoleName:      roleName,
		SecurityStamp: securityStamp,
		Permissions:   map[string]struct{}{},
	}
	if e == nil || e.registry == nil || userID == "" {
		return p
	}
	p.RoleLevel = e.registry.Level(roleName)
	p.Permissions = e.registry.PermissionSet(roleName)
	return p
}

// HasPermission reports whether the principal holds perm. The role named
// ADMIN holds every permission; everyone else needs exact membership in
// their resolved set. Unknown or malformed permission strings evaluate to
// false.
func (e *Engine) HasPermission(p *Principal, perm string) bool {
	e.metricInc(MetricPermissionCheck)
	if !p.Authenticated() {
		return false
	}
	if p.RoleName == permission.AdminRole {
		return true
	}
	_, ok := p.Permissions[perm]
	return ok
}

// HasAnyPermission reports whether the principal holds at least one of
// perms. False for an empty list.
func (e *Engine) HasAnyPermission(p *Principal, perms []string) bool {
	if !p.Authenticated() {
		return false
	}
	if p.RoleName == permission.AdminRole {
		return true
	}
	for _, perm := range perms {
		if _, ok := p.Permissions[perm]; ok {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the principal holds every permission in
// perms. True for an empty list.
func (e *Engine) HasAllPermissions(p *Principal, perms []string) bool {
	if !p.Authenticated() {
		return len(perms) == 0
	}
	if p.RoleName == permission.AdminRole {
		return true
	}
	for _, perm := range perms {
		if _, ok := p.Permissions[perm]; !ok {
			return false
		}
	}
	return true
}

// HasMinimumRole reports whether the principal's role level is at least
// level. Unauthenticated principals and unknown roles are level 0.
func (e *Engine) HasMinimumRole(p *Principal, level int) bool {
	if !p.Authenticated() {
		return level <= 0
	}
	return p.RoleLevel >= level
}

// IsResourceOwner reports whether the principal is the owner of a resource.
func (e *Engine) IsResourceOwner(p *Principal, resourceOwnerID string) bool {
	return p.Authenticated() && resourceOwnerID != "" && p.UserID == resourceOwnerID
}

// CanPerformAction composes ownership with permissions. Without an owner ID
// it equals HasPermission. With one, the principal needs either the
// manage-scoped variant of perm (posts:update -> posts:manage), or to be
// the owner while holding the base permission.
func (e *Engine) CanPerformAction(p *Principal, perm, resourceOwnerID string) bool {
	if resourceOwnerID == "" {
		return e.HasPermission(p, perm)
	}
	if manage := permission.ManageVariant(perm); manage != "" && e.HasPermission(p, manage) {
		return true
	}
	return e.IsResourceOwner(p, resourceOwnerID) && e.HasPermission(p, perm)
}

// RequirePermission aborts with [ErrUnauthenticated] or
// [ErrPermissionDenied] instead of returning a boolean. For call sites that
// must stop rather than branch.
func (e *Engine) RequirePermission(ctx context.Context, p *Principal, perm string) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if e.HasPermission(p, perm) {
		return nil
	}
	return e.denied(ctx, p, map[string]string{"permission": perm})
}

// RequireAnyPermission aborts unless the principal holds at least one of
// perms.
func (e *Engine) RequireAnyPermission(ctx context.Context, p *Principal, perms []string) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if e.HasAnyPermission(p, perms) {
		return nil
	}
	return e.denied(ctx, p, nil)
}

// RequireMinimumRole aborts unless the principal's role level is at least
// level.
func (e *Engine) RequireMinimumRole(ctx context.Context, p *Principal, level int) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if e.HasMinimumRole(p, level) {
		return nil
	}
	return e.denied(ctx, p, nil)
}

func (e *Engine) denied(ctx context.Context, p *Principal, metadata map[string]string) error {
	e.metricInc(MetricPermissionDenied)
	e.emitAudit(ctx, auditEventPermissionDenied, false, p.UserID, "", ErrPermissionDenied, metadata)
	return ErrPermissionDenied
}
