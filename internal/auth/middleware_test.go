package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/authority/internal/auth"
	"github.com/odyssey-erp/authority/internal/authz"
	"github.com/odyssey-erp/authority/internal/shared"
)

type failingAuthenticator struct{ err error }

func (f failingAuthenticator) Authenticate(context.Context, auth.Credential) (auth.Subject, error) {
	return auth.Subject{}, f.err
}

func requestWithUser(t *testing.T, userID string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	manager := shared.NewSessionManager(client, "test_session", "test-secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/authz/me", nil)
	sess, err := manager.Load(req.Context(), req)
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func newMiddleware(authenticator auth.Authenticator) (auth.Middleware, *auth.Registry) {
	registry := authz.NewRegistry[*auth.User]()
	registry.RegisterRoles("posts.publish", "editor")
	return auth.Middleware{
		Credentials:   auth.SessionCredentials{},
		Authenticator: authenticator,
		Registry:      registry,
	}, registry
}

func TestAuthenticateInstallsAuthority(t *testing.T) {
	roles := authz.NewStaticRoles()
	roles.Assign(42, "editor")
	svc := auth.NewService(newStubRepo(&auth.User{ID: 42, IsActive: true}), roles)
	mw, _ := newMiddleware(svc)

	var got *auth.Authority
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.AuthorityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser(t, "42"))

	require.Equal(t, http.StatusNoContent, res.Code)
	require.NotNil(t, got)
	require.Equal(t, int64(42), got.Subject().ID)
	require.Equal(t, int64(42), got.Subject().User.ID)
	require.True(t, got.Can("posts.publish"))
}

func TestAuthenticateForbidden(t *testing.T) {
	svc := auth.NewService(newStubRepo(&auth.User{ID: 3, IsActive: false}), authz.NewStaticRoles())
	mw, _ := newMiddleware(svc)
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	for name, userID := range map[string]string{
		"anonymous": "",
		"malformed": "abc",
		"inactive":  "3",
		"unknown":   "77",
	} {
		t.Run(name, func(t *testing.T) {
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, requestWithUser(t, userID))
			require.Equal(t, http.StatusForbidden, res.Code)
		})
	}
}

func TestAuthenticateWithoutSession(t *testing.T) {
	mw, _ := newMiddleware(failingAuthenticator{})
	res := httptest.NewRecorder()
	mw.Authenticate(http.NotFoundHandler()).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestAuthenticateStorageError(t *testing.T) {
	mw, _ := newMiddleware(failingAuthenticator{err: errors.New("db down")})
	res := httptest.NewRecorder()
	mw.Authenticate(http.NotFoundHandler()).ServeHTTP(res, requestWithUser(t, "9"))
	require.Equal(t, http.StatusInternalServerError, res.Code)
}
