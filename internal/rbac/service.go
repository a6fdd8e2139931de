package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/authority/internal/authz"
)

// RoleStore is the persistence used by Service.
type RoleStore interface {
	authz.RoleProvider
	ListRoles(ctx context.Context) ([]Role, error)
	AssignRole(ctx context.Context, userID int64, role string) error
	RemoveRole(ctx context.Context, userID int64, role string) error
}

// Invalidator drops cached role snapshots after an assignment changes.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// RetryingInvalidator evicts through Primary and hands the eviction to Retry only when
// Primary fails.
type RetryingInvalidator struct {
	Primary Invalidator
	Retry   Invalidator
}

// Invalidate implements Invalidator.
func (r RetryingInvalidator) Invalidate(ctx context.Context, userID int64) error {
	err := r.Primary.Invalidate(ctx, userID)
	if err == nil || r.Retry == nil {
		return err
	}
	if retryErr := r.Retry.Invalidate(ctx, userID); retryErr != nil {
		return errors.Join(err, retryErr)
	}
	return nil
}

// Service orchestrates role administration.
type Service struct {
	store       RoleStore
	invalidator Invalidator
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewService constructs a Service. invalidator may be nil when no cache is in use.
func NewService(store RoleStore, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{store: store, invalidator: invalidator, logger: logger, validate: validator.New()}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// RolesForUser returns the stored roles of a user, bypassing any cache.
func (s *Service) RolesForUser(ctx context.Context, userID int64) (authz.Roles, error) {
	return s.store.RolesForUser(ctx, userID)
}

// AssignRole grants a role and invalidates the user's cached roles.
func (s *Service) AssignRole(ctx context.Context, in Assignment) error {
	in, err := s.check(in)
	if err != nil {
		return err
	}
	if err := s.store.AssignRole(ctx, in.UserID, in.Role); err != nil {
		return err
	}
	s.invalidate(ctx, in.UserID)
	return nil
}

// RemoveRole revokes a role and invalidates the user's cached roles.
func (s *Service) RemoveRole(ctx context.Context, in Assignment) error {
	in, err := s.check(in)
	if err != nil {
		return err
	}
	if err := s.store.RemoveRole(ctx, in.UserID, in.Role); err != nil {
		return err
	}
	s.invalidate(ctx, in.UserID)
	return nil
}

// check rejects role names with surrounding whitespace instead of trimming them, since
// role matching is exact.
func (s *Service) check(in Assignment) (Assignment, error) {
	if in.Role != strings.TrimSpace(in.Role) {
		return in, fmt.Errorf("%w: role must not have surrounding whitespace", ErrValidation)
	}
	if err := s.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return in, fmt.Errorf("%w: %s failed %s", ErrValidation, strings.ToLower(fieldErrs[0].Field()), fieldErrs[0].Tag())
		}
		return in, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return in, nil
}

// invalidate is best effort: the cache TTL bounds staleness if it fails.
func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, userID); err != nil && s.logger != nil {
		s.logger.Warn("invalidate role cache", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
