package mongodb

import (
	"context"
	"time"
)

// CacheService is the slice of the redis cache the repositories use for hot
// reads. Satisfied by pkg/cache.RedisCache.
type CacheService interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}
