package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/authority/internal/shared"
)

func newManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, "test_session", "test-secret", time.Hour, false), mr
}

func TestSessionRoundTrip(t *testing.T) {
	manager, mr := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(ctx, req)
	require.NoError(t, err)
	_, ok := sess.UserID()
	require.False(t, ok)

	sess.SetUser("42")
	res := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, res, sess))
	require.True(t, mr.Exists("session:"+sess.ID))

	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	loaded, err := manager.Load(ctx, next)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
	id, ok := loaded.UserID()
	require.True(t, ok)
	require.Equal(t, int64(42), id)
}

func TestSessionAnonymousNotPersisted(t *testing.T) {
	manager, mr := newManager(t)
	ctx := context.Background()

	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	res := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, res, sess))

	require.Empty(t, res.Result().Cookies())
	require.Empty(t, mr.Keys())
}

func TestSessionDestroy(t *testing.T) {
	manager, mr := newManager(t)
	ctx := context.Background()

	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("7")
	require.NoError(t, manager.Commit(ctx, httptest.NewRecorder(), sess))

	manager.Destroy(sess)
	res := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, res, sess))
	require.False(t, mr.Exists("session:"+sess.ID))
	require.Equal(t, -1, res.Result().Cookies()[0].MaxAge)
}

func TestSessionUserIDRejectsMalformed(t *testing.T) {
	manager, _ := newManager(t)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	for _, raw := range []string{"abc", "-3", "0", "  "} {
		sess.SetUser(raw)
		_, ok := sess.UserID()
		require.False(t, ok, raw)
	}
}

func TestSessionContext(t *testing.T) {
	require.Nil(t, shared.SessionFromContext(context.Background()))
	sess := &shared.Session{ID: "abc"}
	ctx := shared.ContextWithSession(context.Background(), sess)
	require.Same(t, sess, shared.SessionFromContext(ctx))
}

func TestSessionRejectsTamperedCookie(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("42")
	res := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, res, sess))
	cookie := res.Result().Cookies()[0]
	require.NotEqual(t, sess.ID, cookie.Value)

	for _, value := range []string{sess.ID, sess.ID + ".bogus", "other." + cookie.Value[len(sess.ID)+1:]} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: value})
		loaded, err := manager.Load(ctx, req)
		require.NoError(t, err)
		require.NotEqual(t, sess.ID, loaded.ID, value)
		_, ok := loaded.UserID()
		require.False(t, ok, value)
	}
}
