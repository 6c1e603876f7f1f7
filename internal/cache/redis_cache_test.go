package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/munnorthwest/conference-messaging/internal/dispatch"
)

func newCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(rdb, 10*time.Second), mr
}

func TestRedisCache_StoreAndGetSummary(t *testing.T) {
	t.Parallel()

	c, mr := newCache(t)
	ctx := context.Background()

	in := dispatch.Outcome{
		Sent:   3,
		Failed: 1,
		Errors: []string{"Jane Doe: provider rejected number"},
	}

	if err := c.StoreSummary(ctx, 42, in); err != nil {
		t.Fatalf("StoreSummary() error: %v", err)
	}

	if !mr.Exists("summary:42") {
		t.Fatalf("expected key summary:42 to exist")
	}
	if ttl := mr.TTL("summary:42"); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	raw, err := mr.Get("summary:42")
	if err != nil {
		t.Fatalf("failed to get key: %v", err)
	}
	var stored dispatch.Outcome
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("failed to unmarshal stored value: %v", err)
	}
	if stored.Sent != in.Sent || stored.Failed != in.Failed {
		t.Fatalf("stored %+v, want %+v", stored, in)
	}

	got, ok, err := c.GetSummary(ctx, 42)
	if err != nil {
		t.Fatalf("GetSummary() error: %v", err)
	}
	if !ok {
		t.Fatalf("expected summary to be found")
	}
	if got.Sent != 3 || got.Failed != 1 || len(got.Errors) != 1 {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestRedisCache_GetSummary_Missing(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t)

	_, ok, err := c.GetSummary(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetSummary() error: %v", err)
	}
	if ok {
		t.Fatalf("expected no summary for unknown message")
	}
}

func TestRedisCache_StoreSummary_ContextCanceled(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.StoreSummary(ctx, 1, dispatch.Outcome{}); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
