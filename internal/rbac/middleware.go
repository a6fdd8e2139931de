package rbac

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/authority/internal/auth"
	"github.com/odyssey-erp/authority/internal/observability"
	"github.com/odyssey-erp/authority/internal/platform/httpx"
)

// Middleware guards HTTP handlers with privilege checks against the request Authority.
// Decision callbacks receive the *http.Request as their only argument.
type Middleware struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// RequireAny lets the request through when at least one privilege is granted.
func (m Middleware) RequireAny(privs ...string) func(http.Handler) http.Handler {
	return m.require(normalizePrivileges(privs), false)
}

// RequireAll lets the request through only when every privilege is granted.
func (m Middleware) RequireAll(privs ...string) func(http.Handler) http.Handler {
	return m.require(normalizePrivileges(privs), true)
}

func (m Middleware) require(privs []string, all bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(privs) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			authority := auth.AuthorityFromContext(r.Context())
			if authority == nil {
				if m.Logger != nil {
					m.Logger.Warn("rbac guard without authority", slog.String("path", r.URL.Path))
				}
				forbid(w)
				return
			}
			for _, p := range privs {
				granted := authority.Can(p, r)
				m.Metrics.ObserveDecision(p, granted)
				if granted && !all {
					next.ServeHTTP(w, r)
					return
				}
				if !granted && all {
					forbid(w)
					return
				}
			}
			if all {
				next.ServeHTTP(w, r)
				return
			}
			forbid(w)
		})
	}
}

func forbid(w http.ResponseWriter) {
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient privileges")
}

// normalizePrivileges drops blanks and duplicates, keeping first-seen order so callbacks
// run in the order the guard lists them. Names are not case-folded.
func normalizePrivileges(privs []string) []string {
	seen := make(map[string]struct{}, len(privs))
	out := make([]string, 0, len(privs))
	for _, p := range privs {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
