package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow делает INCR по ключу и ставит TTL окна.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, keyPrefix+key)
	pipe.Expire(ctx, keyPrefix+key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// CarrierMinuteKey: ключ поминутного окна запросов к перевозчику.
func CarrierMinuteKey(carrierID string, now time.Time) string {
	return fmt.Sprintf("rl:carrier:%s:%s", carrierID, now.UTC().Format("200601021504"))
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
