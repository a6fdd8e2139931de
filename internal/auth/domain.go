package auth

import (
	"time"

	"github.com/odyssey-erp/authority/internal/authz"
)

// User is the principal payload handed to decision callbacks.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credential is what a request presents to identify its user.
type Credential struct {
	UserID int64
}

// Subject is an authenticated user together with the roles held at login.
type Subject struct {
	User  *User
	Roles authz.Roles
}

// Registry is the privilege registry specialised to User.
type Registry = authz.Registry[*User]

// Authority is the decision engine specialised to User.
type Authority = authz.Authority[*User]
