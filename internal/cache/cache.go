package cache

import (
	"context"
	"time"
)

// BytesCache: кэш произвольных байтов с TTL. Отсутствие ключа не является ошибкой.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
