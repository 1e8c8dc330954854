package authcore

import (
	"context"
	"testing"
)

func permTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, newMemUserStore())
}

func TestResolvePrincipal(t *testing.T) {
	env := permTestEnv(t)

	p := env.engine.ResolvePrincipal("u1", "EDITOR", "stamp-1")
	if !p.Authenticated() {
		t.Fatal("expected authenticated principal")
	}
	if p.RoleLevel != 50 {
		t.Fatalf("role level = %d, want 50", p.RoleLevel)
	}
	if _, ok := p.Permissions["posts:update"]; !ok {
		t.Fatal("expected posts:update in resolved set")
	}
	if p.SecurityStamp != "stamp-1" {
		t.Fatalf("stamp = %q", p.SecurityStamp)
	}
}

func TestResolvePrincipalUnknownRole(t *testing.T) {
	env := permTestEnv(t)

	p := env.engine.ResolvePrincipal("u1", "GHOST", "")
	if p.RoleLevel != 0 {
		t.Fatalf("unknown role level = %d, want 0", p.RoleLevel)
	}
	if len(p.Permissions) != 0 {
		t.Fatalf("unknown role permissions = %v, want empty", p.Permissions)
	}
}

func TestResolvePrincipalUnauthenticated(t *testing.T) {
	env := permTestEnv(t)

	p := env.engine.ResolvePrincipal("", "EDITOR", "")
	if p.Authenticated() {
		t.Fatal("empty user id must not authenticate")
	}
	if p.RoleLevel != 0 || len(p.Permissions) != 0 {
		t.Fatal("unauthenticated principal must carry no access")
	}
}

func TestHasPermissionAdminShortCircuit(t *testing.T) {
	env := permTestEnv(t)
	admin := env.engine.ResolvePrincipal("a1", "ADMIN", "")

	for _, perm := range []string{"posts:read", "users:delete", "anything:at-all"} {
		if !env.engine.HasPermission(admin, perm) {
			t.Fatalf("admin lacks %q", perm)
		}
	}
	if !env.engine.HasMinimumRole(admin, 100) {
		t.Fatal("admin below own level")
	}
	if !env.engine.HasAllPermissions(admin, []string{"x:y", "z:w"}) {
		t.Fatal("admin must pass HasAllPermissions")
	}
}

func TestHasPermissionExactMembership(t *testing.T) {
	env := permTestEnv(t)
	p := env.engine.ResolvePrincipal("u1", "USER", "")

	if !env.engine.HasPermission(p, "posts:read") {
		t.Fatal("expected posts:read")
	}
	// No prefix or substring matching.
	for _, perm := range []string{"posts", "posts:", "posts:rea", "posts:read:extra", "users:read"} {
		if env.engine.HasPermission(p, perm) {
			t.Fatalf("unexpected grant for %q", perm)
		}
	}
}

func TestHasAnyAllPermissions(t *testing.T) {
	env := permTestEnv(t)
	p := env.engine.ResolvePrincipal("u1", "USER", "")

	if !env.engine.HasAnyPermission(p, []string{"users:delete", "posts:read"}) {
		t.Fatal("any: expected match on posts:read")
	}
	if env.engine.HasAnyPermission(p, []string{"users:delete"}) {
		t.Fatal("any: unexpected match")
	}
	if env.engine.HasAnyPermission(p, nil) {
		t.Fatal("any: empty list must be false")
	}

	if !env.engine.HasAllPermissions(p, []string{"posts:read", "posts:update"}) {
		t.Fatal("all: expected full match")
	}
	if env.engine.HasAllPermissions(p, []string{"posts:read", "users:delete"}) {
		t.Fatal("all: unexpected match")
	}
	if !env.engine.HasAllPermissions(p, nil) {
		t.Fatal("all: empty list must be true")
	}
}

func TestHasMinimumRole(t *testing.T) {
	env := permTestEnv(t)
	p := env.engine.ResolvePrincipal("u1", "EDITOR", "")

	if !env.engine.HasMinimumRole(p, 50) {
		t.Fatal("level 50 must satisfy 50")
	}
	if !env.engine.HasMinimumRole(p, 10) {
		t.Fatal("level 50 must satisfy 10")
	}
	if env.engine.HasMinimumRole(p, 51) {
		t.Fatal("level 50 must not satisfy 51")
	}

	anon := env.engine.ResolvePrincipal("", "", "")
	if !env.engine.HasMinimumRole(anon, 0) {
		t.Fatal("unauthenticated is level 0")
	}
	if env.engine.HasMinimumRole(anon, 1) {
		t.Fatal("unauthenticated must not satisfy level 1")
	}
}

func TestCanPerformAction(t *testing.T) {
	env := permTestEnv(t)

	// USER holds posts:update but not posts:manage.
	user := env.engine.ResolvePrincipal("u1", "USER", "")
	// EDITOR additionally holds posts:manage.
	editor := env.engine.ResolvePrincipal("e1", "EDITOR", "")

	if !env.engine.CanPerformAction(user, "posts:update", "u1") {
		t.Fatal("owner with base permission must act")
	}
	if env.engine.CanPerformAction(user, "posts:update", "someone-else") {
		t.Fatal("non-owner without manage must not act")
	}
	if !env.engine.CanPerformAction(editor, "posts:update", "someone-else") {
		t.Fatal("manage variant must grant non-owner access")
	}
	// Without an owner id the check degenerates to HasPermission.
	if !env.engine.CanPerformAction(user, "posts:update", "") {
		t.Fatal("no owner id: plain permission check")
	}
	if env.engine.CanPerformAction(user, "users:delete", "") {
		t.Fatal("no owner id: missing permission")
	}
}

func TestIsResourceOwner(t *testing.T) {
	env := permTestEnv(t)
	p := env.engine.ResolvePrincipal("u1", "USER", "")

	if !env.engine.IsResourceOwner(p, "u1") {
		t.Fatal("expected ownership")
	}
	if env.engine.IsResourceOwner(p, "u2") {
		t.Fatal("unexpected ownership")
	}
	if env.engine.IsResourceOwner(p, "") {
		t.Fatal("empty owner id never matches")
	}
}

func TestRequirePermission(t *testing.T) {
	env := permTestEnv(t)
	ctx := context.Background()

	p := env.engine.ResolvePrincipal("u1", "USER", "")
	if err := env.engine.RequirePermission(ctx, p, "posts:read"); err != nil {
		t.Fatalf("RequirePermission: %v", err)
	}
	mustErrorIs(t, env.engine.RequirePermission(ctx, p, "users:delete"), ErrPermissionDenied)

	anon := env.engine.ResolvePrincipal("", "", "")
	mustErrorIs(t, env.engine.RequirePermission(ctx, anon, "posts:read"), ErrUnauthenticated)
	mustErrorIs(t, env.engine.RequireMinimumRole(ctx, anon, 1), ErrUnauthenticated)
	mustErrorIs(t, env.engine.RequireAnyPermission(ctx, p, []string{"users:delete"}), ErrPermissionDenied)
}

func TestPermissionDeniedCountsMetric(t *testing.T) {
	env := permTestEnv(t)
	ctx := context.Background()
	p := env.engine.ResolvePrincipal("u1", "USER", "")

	_ = env.engine.RequirePermission(ctx, p, "users:delete")
	_ = env.engine.RequirePermission(ctx, p, "users:delete")

	snap := env.engine.MetricsSnapshot()
	if got := snap.Counters[MetricPermissionDenied]; got != 2 {
		t.Fatalf("denied counter = %d, want 2", got)
	}
}
