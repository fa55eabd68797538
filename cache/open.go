package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "workoutplan:plan:"

// Open returns the cache for backend ("none", "file" or "redis") and a
// function releasing its resources.
func Open(ctx context.Context, backend, dir, redisAddr string) (Cache, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case "", "none":
		return Noop{}, noop, nil
	case "file":
		fc, err := NewFileCache(dir)
		if err != nil {
			return nil, nil, err
		}
		return fc, noop, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis cache at %s: %w", redisAddr, err)
		}
		return NewRedisCache(rdb, redisPrefix), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
