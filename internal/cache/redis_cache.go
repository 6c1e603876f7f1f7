package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/munnorthwest/conference-messaging/internal/dispatch"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func summaryKey(messageID int64) string {
	return fmt.Sprintf("summary:%d", messageID)
}

func (c *RedisCache) StoreSummary(ctx context.Context, messageID int64, out dispatch.Outcome) error {
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, summaryKey(messageID), b, c.ttl).Err()
}

func (c *RedisCache) GetSummary(ctx context.Context, messageID int64) (dispatch.Outcome, bool, error) {
	raw, err := c.rdb.Get(ctx, summaryKey(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return dispatch.Outcome{}, false, nil
	}
	if err != nil {
		return dispatch.Outcome{}, false, err
	}

	var out dispatch.Outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return dispatch.Outcome{}, false, err
	}
	return out, true, nil
}
