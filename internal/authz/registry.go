package authz

import (
	"sort"
	"sync"
)

// Callback decides a privilege for the current user. Arguments are passed through from
// the Can call in order.
type Callback[U any] func(user U, args ...any) bool

type rule[U any] struct {
	roles    Roles
	hasRoles bool
	callback Callback[U]
}

// Registry stores, per privilege name, the roles that grant it and an optional decision
// callback. It is safe for concurrent use; writes are expected during bootstrap only.
type Registry[U any] struct {
	mu    sync.RWMutex
	rules map[string]*rule[U]
}

// NewRegistry constructs an empty Registry.
func NewRegistry[U any]() *Registry[U] {
	return &Registry[U]{rules: make(map[string]*rule[U])}
}

// RegisterRoles associates the required roles with a privilege, replacing any previous
// role association. An existing callback is kept. Calling it with no roles records an
// explicit empty requirement.
func (r *Registry[U]) RegisterRoles(privilege string, roles ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entry(privilege)
	entry.roles = NewRoles(roles...)
	entry.hasRoles = true
}

// RegisterCallback associates a decision callback with a privilege, replacing any previous
// callback. Existing roles are kept. Nil callbacks are ignored.
func (r *Registry[U]) RegisterCallback(privilege string, cb Callback[U]) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(privilege).callback = cb
}

// Roles returns the required roles for a privilege. The boolean is false when no role rule
// was registered, which is distinct from a registered empty set.
func (r *Registry[U]) Roles(privilege string) (Roles, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rules[privilege]
	if !ok || !entry.hasRoles {
		return nil, false
	}
	return entry.roles.Clone(), true
}

// Callback returns the decision callback for a privilege.
func (r *Registry[U]) Callback(privilege string) (Callback[U], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rules[privilege]
	if !ok || entry.callback == nil {
		return nil, false
	}
	return entry.callback, true
}

// Privileges lists every registered privilege name in sorted order.
func (r *Registry[U]) Privileges() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a privilege has been registered with roles or a callback.
func (r *Registry[U]) Has(privilege string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rules[privilege]
	return ok
}

// lookup reads the role grant and the callback for a privilege under one read lock, so a
// decision never mixes two registry states. grantedByRole is true only for a non-empty role
// requirement that intersects held.
func (r *Registry[U]) lookup(privilege string, held Roles) (grantedByRole bool, cb Callback[U]) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rules[privilege]
	if !ok {
		return false, nil
	}
	if entry.hasRoles && len(entry.roles) > 0 && entry.roles.Intersects(held) {
		return true, nil
	}
	return false, entry.callback
}

func (r *Registry[U]) entry(privilege string) *rule[U] {
	entry, ok := r.rules[privilege]
	if !ok {
		entry = &rule[U]{}
		r.rules[privilege] = entry
	}
	return entry
}
