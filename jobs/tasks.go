package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRoleCacheInvalidate evicts a user's cached role snapshot.
	TaskRoleCacheInvalidate = "authz:roles:invalidate"
)

// RoleInvalidatePayload names the user whose roles changed.
type RoleInvalidatePayload struct {
	UserID int64 `json:"user_id"`
}

// NewRoleInvalidateTask constructs an Asynq task.
func NewRoleInvalidateTask(userID int64) (*asynq.Task, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("jobs: invalid user id %d", userID)
	}
	data, err := json.Marshal(RoleInvalidatePayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoleCacheInvalidate, data), nil
}

// RoleEvicter drops a cached role snapshot.
type RoleEvicter interface {
	Invalidate(ctx context.Context, userID int64) error
}

// NewRoleInvalidateHandler processes TaskRoleCacheInvalidate tasks.
func NewRoleInvalidateHandler(evicter RoleEvicter, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RoleInvalidatePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.UserID <= 0 {
			if logger != nil {
				logger.Warn("discard role invalidation", slog.String("payload", string(t.Payload())))
			}
			return fmt.Errorf("jobs: bad payload: %w", asynq.SkipRetry)
		}
		if err := evicter.Invalidate(ctx, payload.UserID); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("role cache invalidated", slog.Int64("user_id", payload.UserID))
		}
		return nil
	}
}
