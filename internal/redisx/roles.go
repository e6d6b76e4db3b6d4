package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RoleSource loads the group names of a user from the system of record.
type RoleSource interface {
	GroupsOf(ctx context.Context, userID int64) ([]string, error)
}

// CachedRoles puts a TTL cache in front of a RoleSource. Redis failures
// fall through to the source.
type CachedRoles struct {
	Source RoleSource
	RDB    *redis.Client
	Log    *zap.Logger
}

func (c *CachedRoles) GroupsOf(ctx context.Context, userID int64) ([]string, error) {
	if c.RDB == nil {
		return c.Source.GroupsOf(ctx, userID)
	}
	key := fmt.Sprintf(KeyRoles, userID)
	if raw, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
		var groups []string
		if json.Unmarshal(raw, &groups) == nil {
			return groups, nil
		}
	} else if err != redis.Nil {
		c.logger().Warn("role cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	groups, err := c.Source.GroupsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(groups); err == nil {
		if err := c.RDB.Set(ctx, key, b, TTLRoles).Err(); err != nil {
			c.logger().Warn("role cache write failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return groups, nil
}

// Invalidate drops the cached groups of userID after a membership change.
func (c *CachedRoles) Invalidate(ctx context.Context, userID int64) error {
	if c.RDB == nil {
		return nil
	}
	return c.RDB.Del(ctx, fmt.Sprintf(KeyRoles, userID)).Err()
}

func (c *CachedRoles) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}
