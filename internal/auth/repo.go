package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/authority/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
}

// Querier is the subset of pgxpool.Pool used by PGRepository.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db Querier) *PGRepository {
	return &PGRepository{db: db}
}

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := r.db.QueryRow(ctx, `SELECT id, email, name, is_active, created_at, updated_at FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Email, &user.Name, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find user %d: %w", id, err)
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
