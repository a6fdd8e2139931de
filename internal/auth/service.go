package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/authority/internal/authz"
	"github.com/odyssey-erp/authority/internal/shared"
)

// CredentialReader extracts a credential from a request.
type CredentialReader interface {
	Read(r *http.Request) (Credential, error)
}

// Authenticator resolves a credential into a Subject.
type Authenticator interface {
	Authenticate(ctx context.Context, cred Credential) (Subject, error)
}

// SessionCredentials reads the user ID stored in the request session.
type SessionCredentials struct{}

// Read implements CredentialReader.
func (SessionCredentials) Read(r *http.Request) (Credential, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return Credential{}, shared.ErrUnauthenticated
	}
	id, ok := sess.UserID()
	if !ok {
		return Credential{}, shared.ErrUnauthenticated
	}
	return Credential{UserID: id}, nil
}

// Service authenticates users against the user repository and loads their roles.
type Service struct {
	repo  Repository
	roles authz.RoleProvider
}

// NewService constructs a new Service.
func NewService(repo Repository, roles authz.RoleProvider) *Service {
	return &Service{repo: repo, roles: roles}
}

// Authenticate implements Authenticator. Unknown and inactive users yield
// shared.ErrInvalidCredentials; storage failures are returned wrapped.
func (s *Service) Authenticate(ctx context.Context, cred Credential) (Subject, error) {
	if cred.UserID <= 0 {
		return Subject{}, shared.ErrInvalidCredentials
	}
	user, err := s.repo.FindByID(ctx, cred.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Subject{}, shared.ErrInvalidCredentials
		}
		return Subject{}, err
	}
	if !user.IsActive {
		return Subject{}, shared.ErrInvalidCredentials
	}
	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return Subject{}, fmt.Errorf("auth: roles for user %d: %w", user.ID, err)
	}
	return Subject{User: user, Roles: roles}, nil
}

var (
	_ CredentialReader = SessionCredentials{}
	_ Authenticator    = (*Service)(nil)
)
