package redisx

import "time"

const (
	// Cached group names of a user: roles:{user_id} -> ["Manager", ...]
	KeyRoles = "roles:%d"

	// Request counter per fixed window: throttle:{scope}:{subject}:{window}
	KeyThrottle = "throttle:%s:%s:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLRoles       = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	ThrottleWindow = time.Minute
)
