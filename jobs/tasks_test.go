package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubEvicter struct {
	users []int64
	err   error
}

func (s *stubEvicter) Invalidate(_ context.Context, userID int64) error {
	s.users = append(s.users, userID)
	return s.err
}

func TestNewRoleInvalidateTask(t *testing.T) {
	task, err := NewRoleInvalidateTask(42)
	require.NoError(t, err)
	require.Equal(t, TaskRoleCacheInvalidate, task.Type())

	var payload RoleInvalidatePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(42), payload.UserID)

	_, err = NewRoleInvalidateTask(0)
	require.Error(t, err)
}

func TestRoleInvalidateHandler(t *testing.T) {
	evicter := &stubEvicter{}
	handler := NewRoleInvalidateHandler(evicter, nil)

	task, err := NewRoleInvalidateTask(7)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, []int64{7}, evicter.users)
}

func TestRoleInvalidateHandlerSkipsBadPayload(t *testing.T) {
	evicter := &stubEvicter{}
	handler := NewRoleInvalidateHandler(evicter, nil)

	err := handler(context.Background(), asynq.NewTask(TaskRoleCacheInvalidate, []byte(`{"user_id":0}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	err = handler(context.Background(), asynq.NewTask(TaskRoleCacheInvalidate, []byte(`not json`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, evicter.users)
}

func TestRoleInvalidateHandlerRetriesEvictionFailure(t *testing.T) {
	down := errors.New("redis down")
	handler := NewRoleInvalidateHandler(&stubEvicter{err: down}, nil)

	task, err := NewRoleInvalidateTask(7)
	require.NoError(t, err)
	err = handler(context.Background(), task)
	require.ErrorIs(t, err, down)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHealthWithoutInspector(t *testing.T) {
	res := httptest.NewRecorder()
	NewHandler(nil, nil).health(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, res.Body.String())
}

func TestClientEnqueuesEveryInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	require.NoError(t, client.Invalidate(ctx, 7))
	require.NoError(t, client.Invalidate(ctx, 7))

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.Error(t, client.Invalidate(ctx, 0))
}
