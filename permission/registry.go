package permission

import (
	"errors"
	"sync"
)

// RoleDef is the immutable definition of one role.
type RoleDef struct {
	Name        string
	Level       int
	Permissions map[string]struct{}
}

// Registry maps role names to their level and permission set. Populate it
// during startup, then Freeze before handing it to concurrent readers.
type Registry struct {
	mu     sync.RWMutex
	roles  map[string]RoleDef
	frozen bool
}

// NewRegistry creates an empty role registry.
func NewRegistry() *Registry {
	return &Registry{
		roles: make(map[string]RoleDef),
	}
}

// RegisterRole adds a role with its level and permission strings. Malformed
// permission strings are rejected rather than silently dropped so
// configuration typos surface at startup. Must be called before Freeze.
func (r *Registry) RegisterRole(name string, level int, perms []string) error {
	if name == "" {
		return errors.New("role name cannot be empty")
	}
	if level < 0 {
		return errors.New("role level cannot be negative")
	}

	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if !Valid(p) {
			return errors.New("malformed permission string: " + p)
		}
		set[p] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}
	if _, exists := r.roles[name]; exists {
		return errors.New("role already registered: " + name)
	}

	r.roles[name] = RoleDef{Name: name, Level: level, Permissions: set}
	return nil
}

// Freeze marks the registry read-only. Further RegisterRole calls fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Role returns the definition for name. ok is false for unknown roles,
// which callers treat as level 0 with an empty permission set.
func (r *Registry) Role(name string) (RoleDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.roles[name]
	return def, ok
}

// Level returns the numeric level for name, or 0 for unknown roles.
func (r *Registry) Level(name string) int {
	def, ok := r.Role(name)
	if !ok {
		return 0
	}
	return def.Level
}

// PermissionSet returns a copy of the permission set for name. The copy is
// owned by the caller; principals hold it for the life of a request.
func (r *Registry) PermissionSet(name string) map[string]struct{} {
	def, ok := r.Role(name)
	if !ok {
		return map[string]struct{}{}
	}
	out := make(map[string]struct{}, len(def.Permissions))
	for p := range def.Permissions {
		out[p] = struct{}{}
	}
	return out
}

// Roles returns the registered role names in unspecified order.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.roles))
	for name := range r.roles {
		out = append(out, name)
	}
	return out
}
