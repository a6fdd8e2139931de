package authz

import (
	"context"
	"sync"
)

// RoleProvider resolves the roles a user currently holds.
type RoleProvider interface {
	RolesForUser(ctx context.Context, userID int64) (Roles, error)
}

// StaticRoles is an in-memory RoleProvider. Unknown users hold no roles.
type StaticRoles struct {
	mu    sync.RWMutex
	roles map[int64]Roles
}

// NewStaticRoles constructs a StaticRoles provider.
func NewStaticRoles() *StaticRoles {
	return &StaticRoles{roles: make(map[int64]Roles)}
}

// Assign replaces the roles held by a user.
func (s *StaticRoles) Assign(userID int64, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = NewRoles(roles...)
}

// RolesForUser implements RoleProvider.
func (s *StaticRoles) RolesForUser(_ context.Context, userID int64) (Roles, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles[userID].Clone(), nil
}

var _ RoleProvider = (*StaticRoles)(nil)
