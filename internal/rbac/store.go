package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/authority/internal/authz"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// DBTX is the subset of pgxpool.Pool used by Store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists roles and user role assignments in PostgreSQL. It is the authoritative
// RoleProvider.
type Store struct {
	db DBTX
}

// NewStore constructs a Store backed by db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const rolesForUserSQL = `SELECT r.name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1`

// RolesForUser implements authz.RoleProvider.
func (s *Store) RolesForUser(ctx context.Context, userID int64) (authz.Roles, error) {
	rows, err := s.db.Query(ctx, rolesForUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: roles for user: %w", err)
	}
	defer rows.Close()
	roles := authz.Roles{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		roles[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: roles for user: %w", err)
	}
	return roles, nil
}

// ListRoles returns all roles ordered by name.
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	return roles, nil
}

const ensureRoleSQL = `INSERT INTO roles (name, description)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET description = COALESCE(NULLIF(EXCLUDED.description, ''), roles.description)
RETURNING id, name, description, created_at, updated_at`

// EnsureRole upserts a role by name. The name is stored verbatim; blank names and names
// with surrounding whitespace are rejected. A blank description keeps the stored one.
func (s *Store) EnsureRole(ctx context.Context, name, description string) (Role, error) {
	if name == "" || name != strings.TrimSpace(name) {
		return Role{}, fmt.Errorf("%w: invalid role name %q", ErrValidation, name)
	}
	var role Role
	err := s.db.QueryRow(ctx, ensureRoleSQL, name, strings.TrimSpace(description)).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: ensure role %s: %w", name, err)
	}
	return role, nil
}

const assignRoleSQL = `INSERT INTO user_roles (user_id, role_id)
SELECT $1, id FROM roles WHERE name = $2`

// AssignRole grants the named role to a user.
func (s *Store) AssignRole(ctx context.Context, userID int64, role string) error {
	tag, err := s.db.Exec(ctx, assignRoleSQL, userID, role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return ErrDuplicate
			case foreignKeyViolation:
				return ErrNotFound
			}
		}
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const removeRoleSQL = `DELETE FROM user_roles ur
USING roles r
WHERE ur.role_id = r.id AND ur.user_id = $1 AND r.name = $2`

// RemoveRole revokes the named role from a user.
func (s *Store) RemoveRole(ctx context.Context, userID int64, role string) error {
	tag, err := s.db.Exec(ctx, removeRoleSQL, userID, role)
	if err != nil {
		return fmt.Errorf("rbac: remove role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ authz.RoleProvider = (*Store)(nil)
