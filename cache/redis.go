package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries as JSON strings with a native redis TTL.
type RedisCache struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisCache wraps an existing redis client. Keys are stored under prefix.
func NewRedisCache(rdb redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix}
}

// Read implements Reader interface
func (rc *RedisCache) Read(ctx context.Context, key string) (*Entry, bool) {
	data, err := rc.rdb.Get(ctx, rc.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.Expired(time.Now()) {
		return nil, false
	}
	return &entry, true
}

// Write implements Writer interface
func (rc *RedisCache) Write(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	entry.FetchedAt = time.Now()
	entry.ExpiresAt = time.Time{}
	if ttl > 0 {
		entry.ExpiresAt = entry.FetchedAt.Add(ttl)
	} else {
		// negative durations mean KEEPTTL to redis
		ttl = 0
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return rc.rdb.Set(ctx, rc.prefix+key, data, ttl).Err()
}
