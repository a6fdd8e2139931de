package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/authority/internal/authz"
	"github.com/odyssey-erp/authority/internal/platform/httpx"
	"github.com/odyssey-erp/authority/internal/shared"
)

// Middleware authenticates requests and installs a per-request Authority.
type Middleware struct {
	Credentials   CredentialReader
	Authenticator Authenticator
	Registry      *Registry
	Logger        *slog.Logger
}

// Authenticate rejects requests whose credential does not resolve to an active user with
// 403. On success the request context carries an Authority bound to the subject.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, err := m.Credentials.Read(r)
		if err != nil {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
			return
		}
		subject, err := m.Authenticator.Authenticate(r.Context(), cred)
		if err != nil {
			if errors.Is(err, shared.ErrInvalidCredentials) || errors.Is(err, shared.ErrUnauthenticated) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
				return
			}
			if m.Logger != nil {
				m.Logger.Error("authenticate", slog.Int64("user_id", cred.UserID), slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		authority := authz.New(m.Registry)
		authority.SetSubject(subject.User.ID, subject.Roles, subject.User)
		next.ServeHTTP(w, r.WithContext(ContextWithAuthority(r.Context(), authority)))
	})
}

// ContextWithAuthority stores the request Authority.
func ContextWithAuthority(ctx context.Context, a *Authority) context.Context {
	return authz.ContextWithAuthority(ctx, a)
}

// AuthorityFromContext returns the request Authority, or nil outside Authenticate.
func AuthorityFromContext(ctx context.Context) *Authority {
	return authz.AuthorityFromContext[*User](ctx)
}
