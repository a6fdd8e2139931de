package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/authority/internal/auth"
	"github.com/odyssey-erp/authority/internal/observability"
	"github.com/odyssey-erp/authority/internal/platform/httpx"
	"github.com/odyssey-erp/authority/internal/shared"
)

// RoleService is the role administration used by Handler.
type RoleService interface {
	ListRoles(ctx context.Context) ([]Role, error)
	AssignRole(ctx context.Context, in Assignment) error
	RemoveRole(ctx context.Context, in Assignment) error
}

// Handler exposes the authority over HTTP. Every route expects auth.Middleware to have
// installed the request Authority.
type Handler struct {
	logger   *slog.Logger
	service  RoleService
	registry *auth.Registry
	rbac     Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service RoleService, registry *auth.Registry, rbac Middleware) *Handler {
	return &Handler{logger: logger, service: service, registry: registry, rbac: rbac}
}

// MountRoutes registers the authority routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Get("/check", h.check)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermPrivilegesView))
		r.Get("/privileges", h.listPrivileges)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRolesView, shared.PermRolesEdit))
		r.Get("/roles", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesEdit))
		r.Post("/users/{id}/roles", h.assignRole)
		r.Delete("/users/{id}/roles/{role}", h.removeRole)
	})
}

type principalView struct {
	ID        int64    `json:"id"`
	Anonymous bool     `json:"anonymous"`
	Roles     []string `json:"roles"`
}

type decisionView struct {
	Privilege string `json:"privilege"`
	Granted   bool   `json:"granted"`
}

type privilegeView struct {
	Name        string   `json:"name"`
	Roles       []string `json:"roles,omitempty"`
	RoleRule    bool     `json:"role_rule"`
	HasCallback bool     `json:"has_callback"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	authority := auth.AuthorityFromContext(r.Context())
	if authority == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	subject := authority.Subject()
	httpx.JSON(w, http.StatusOK, principalView{
		ID:        subject.ID,
		Anonymous: subject.IsAnonymous(),
		Roles:     subject.Roles.Names(),
	})
}

// check evaluates one privilege for the caller. Repeated "arg" query values are passed to
// the callback as strings, in order.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	authority := auth.AuthorityFromContext(r.Context())
	if authority == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	privilege := r.URL.Query().Get("privilege")
	if privilege == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "privilege is required")
		return
	}
	raw := r.URL.Query()["arg"]
	args := make([]any, len(raw))
	for i, v := range raw {
		args[i] = v
	}
	granted := authority.Can(privilege, args...)
	label := privilege
	if !h.registry.Has(privilege) {
		label = observability.UnregisteredPrivilege
	}
	h.rbac.Metrics.ObserveDecision(label, granted)
	httpx.JSON(w, http.StatusOK, decisionView{Privilege: privilege, Granted: granted})
}

func (h *Handler) listPrivileges(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Privileges()
	out := make([]privilegeView, 0, len(names))
	for _, name := range names {
		view := privilegeView{Name: name}
		if roles, ok := h.registry.Roles(name); ok {
			view.RoleRule = true
			view.Roles = roles.Names()
		}
		_, view.HasCallback = h.registry.Callback(name)
		out = append(out, view)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

type assignRequest struct {
	Role string `json:"role"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		httpx.RespondError(w, ErrValidation)
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.service.AssignRole(r.Context(), Assignment{UserID: userID, Role: req.Role}); err != nil {
		h.fail(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		httpx.RespondError(w, ErrValidation)
		return
	}
	if err := h.service.RemoveRole(r.Context(), Assignment{UserID: userID, Role: chi.URLParam(r, "role")}); err != nil {
		h.fail(w, "remove role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
