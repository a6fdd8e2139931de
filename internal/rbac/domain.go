package rbac

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/authority/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that the user, role or assignment does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)
	// ErrDuplicate indicates that the user already holds the role.
	ErrDuplicate = fmt.Errorf("rbac: %w", httpx.ErrDuplicate)
	// ErrValidation indicates a malformed assignment request.
	ErrValidation = fmt.Errorf("rbac: %w", httpx.ErrValidation)
)

// Role represents a named role that can be granted to users.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Assignment ties a role to a user.
type Assignment struct {
	UserID int64  `json:"user_id" validate:"gt=0"`
	Role   string `json:"role" validate:"required,max=64"`
}
