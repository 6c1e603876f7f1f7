package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so an
// expired acquisition can never release a newer worker's lock.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

type RedisLocker struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, key: key, ttl: ttl}
}

func (l *RedisLocker) TryAcquire(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		return l.rdb.Eval(ctx, releaseScript, []string{l.key}, token).Err()
	}
	return release, true, nil
}
