package redisx

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// New returns nil when addr is empty; every helper in this package treats
// a nil client as "no cache".
func New(addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}
