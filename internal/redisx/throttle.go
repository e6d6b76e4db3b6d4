package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle is a fixed window request counter.
type Throttle struct {
	RDB *redis.Client
	Now func() time.Time
}

// Allow counts one request for subject in scope and reports whether it is
// within limit, plus the time left in the current window. A nil client or
// a non-positive limit always allows.
func (t *Throttle) Allow(ctx context.Context, scope, subject string, limit int) (bool, time.Duration, error) {
	if t == nil || t.RDB == nil || limit <= 0 {
		return true, 0, nil
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	at := now()
	window := at.Unix() / int64(ThrottleWindow/time.Second)
	key := fmt.Sprintf(KeyThrottle, scope, subject, window)

	pipe := t.RDB.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ThrottleWindow+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}
	windowEnd := time.Unix((window+1)*int64(ThrottleWindow/time.Second), 0)
	retry := windowEnd.Sub(at)
	return incr.Val() <= int64(limit), retry, nil
}
