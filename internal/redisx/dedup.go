package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// MarkSeen records id for service and reports whether this is the first
// time it was seen. Without a client every id is new.
func MarkSeen(ctx context.Context, rdb *redis.Client, service, id string) (bool, error) {
	if rdb == nil {
		return true, nil
	}
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, id), "1", TTLDedup).Result()
}

// Forget removes a dedup marker so a failed event can be retried.
func Forget(ctx context.Context, rdb *redis.Client, service, id string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, id)).Err()
}
