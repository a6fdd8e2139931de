// Package authz decides whether the current principal holds a named privilege. Role
// requirements are checked first; a registered callback is consulted only when no
// required role matches.
package authz

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoProvider is returned when an Authority is built from a nil RoleProvider.
var ErrNoProvider = errors.New("authz: role provider required")

// Authority evaluates privileges for a single principal. One Authority belongs to one
// request; it is not safe for concurrent use. The Registry it reads from is shared.
type Authority[U any] struct {
	registry  *Registry[U]
	principal Principal[U]
}

// New constructs an Authority bound to the anonymous principal.
func New[U any](registry *Registry[U]) *Authority[U] {
	if registry == nil {
		registry = NewRegistry[U]()
	}
	return &Authority[U]{registry: registry, principal: anonymous[U]()}
}

// NewFromProvider constructs an Authority whose role snapshot is loaded from provider.
func NewFromProvider[U any](ctx context.Context, registry *Registry[U], provider RoleProvider, userID int64, user U) (*Authority[U], error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	roles, err := provider.RolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: load roles for user %d: %w", userID, err)
	}
	a := New(registry)
	a.SetSubject(userID, roles, user)
	return a, nil
}

// SetSubject rebinds the principal. The role set is copied.
func (a *Authority[U]) SetSubject(userID int64, roles Roles, user U) {
	a.principal = Principal[U]{ID: userID, User: user, Roles: roles.Clone()}
}

// Subject returns a copy of the bound principal.
func (a *Authority[U]) Subject() Principal[U] {
	p := a.principal
	p.Roles = p.Roles.Clone()
	return p
}

// Can reports whether the principal holds privilege. A matching required role grants
// without invoking the callback. Otherwise the callback result is returned as is, and a
// privilege with no callback is denied. Panics raised by the callback are not recovered.
func (a *Authority[U]) Can(privilege string, args ...any) bool {
	granted, cb := a.registry.lookup(privilege, a.principal.Roles)
	if granted {
		return true
	}
	if cb == nil {
		return false
	}
	return cb(a.principal.User, args...)
}

// Cannot is the negation of Can.
func (a *Authority[U]) Cannot(privilege string, args ...any) bool {
	return !a.Can(privilege, args...)
}

type authorityContextKey[U any] struct{}

// ContextWithAuthority stores the request Authority in ctx.
func ContextWithAuthority[U any](ctx context.Context, a *Authority[U]) context.Context {
	return context.WithValue(ctx, authorityContextKey[U]{}, a)
}

// AuthorityFromContext extracts the request Authority, or nil when none was stored.
func AuthorityFromContext[U any](ctx context.Context) *Authority[U] {
	a, _ := ctx.Value(authorityContextKey[U]{}).(*Authority[U])
	return a
}
