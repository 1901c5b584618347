package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter. The dispatcher uses it for the
// cheap per-day cap; the precise per-type cooldown stays on the history
// table, which survives Redis restarts.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}

	return count <= int64(limit), nil
}

// UserDayKey buckets all notification types for a user into one daily window.
func UserDayKey(userID string, day time.Time) string {
	return fmt.Sprintf("notif_cap:%s:%s", userID, day.Format("2006-01-02"))
}
