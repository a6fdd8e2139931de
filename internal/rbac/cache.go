package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/authority/internal/authz"
)

const (
	roleCachePrefix      = "authz:roles:"
	roleGenerationPrefix = "authz:rolegen:"
)

// errStaleSnapshot aborts a cache write whose snapshot predates an invalidation.
var errStaleSnapshot = errors.New("rbac: stale role snapshot")

// CachedProvider caches role snapshots from an inner RoleProvider in Redis. Concurrent
// misses for the same user share one lookup. Redis failures degrade to the inner provider.
//
// Every user has a generation counter that Invalidate increments. A snapshot is written
// back only while the generation read before the lookup is unchanged, so a lookup that
// races a revocation cannot re-cache the revoked roles.
type CachedProvider struct {
	inner  authz.RoleProvider
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedProvider wraps inner with a Redis cache.
func NewCachedProvider(inner authz.RoleProvider, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, client: client, ttl: ttl, logger: logger}
}

// RolesForUser implements authz.RoleProvider.
func (c *CachedProvider) RolesForUser(ctx context.Context, userID int64) (authz.Roles, error) {
	if roles, ok := c.lookup(ctx, userID); ok {
		return roles, nil
	}
	gen, cacheable := c.generation(ctx, userID)
	key := strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(gen, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		roles, err := c.inner.RolesForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cacheable {
			c.store(ctx, userID, gen, roles)
		}
		return roles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(authz.Roles).Clone(), nil
}

// Invalidate evicts the cached snapshot for a user and bumps the user's generation so
// in-flight lookups do not write their snapshot back.
func (c *CachedProvider) Invalidate(ctx context.Context, userID int64) error {
	if c.client == nil {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, roleGenerationKey(userID))
		pipe.Del(ctx, roleCacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("rbac: invalidate roles for user %d: %w", userID, err)
	}
	return nil
}

// generation reads the user's current generation. The boolean is false when the snapshot
// must not be cached.
func (c *CachedProvider) generation(ctx context.Context, userID int64) (int64, bool) {
	if c.client == nil || c.ttl <= 0 {
		return 0, false
	}
	gen, err := c.client.Get(ctx, roleGenerationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.warn("role generation get", userID, err)
		return 0, false
	}
	return gen, true
}

func (c *CachedProvider) lookup(ctx context.Context, userID int64) (authz.Roles, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, roleCacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("role cache get", userID, err)
		}
		return nil, false
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		c.warn("role cache decode", userID, err)
		return nil, false
	}
	return authz.NewRoles(names...), true
}

func (c *CachedProvider) store(ctx context.Context, userID, gen int64, roles authz.Roles) {
	data, err := json.Marshal(roles.Names())
	if err != nil {
		return
	}
	genKey := roleGenerationKey(userID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleSnapshot
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roleCacheKey(userID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleSnapshot), errors.Is(err, redis.TxFailedErr):
		if c.logger != nil {
			c.logger.Debug("role snapshot superseded", slog.Int64("user_id", userID))
		}
	default:
		c.warn("role cache set", userID, err)
	}
}

func (c *CachedProvider) warn(msg string, userID int64, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func roleCacheKey(userID int64) string {
	return roleCachePrefix + strconv.FormatInt(userID, 10)
}

func roleGenerationKey(userID int64) string {
	return roleGenerationPrefix + strconv.FormatInt(userID, 10)
}

var _ authz.RoleProvider = (*CachedProvider)(nil)
