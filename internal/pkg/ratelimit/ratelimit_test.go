package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return rdb
}

func TestLimiter_AllowConsumesTokens(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := NewRedisLimiter(rdb, "test:ratelimit:", 1, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("expected request %d within burst to pass", i)
		}
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow after burst: %v", err)
	}
	if allowed {
		t.Fatalf("expected request over burst to be rejected")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", retryAfter)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := NewRedisLimiter(rdb, "test:ratelimit:", 1, 1)
	ctx := context.Background()

	if allowed, _, _ := limiter.Allow(ctx, "client-a"); !allowed {
		t.Fatalf("expected first client-a request to pass")
	}
	if allowed, _, _ := limiter.Allow(ctx, "client-a"); allowed {
		t.Fatalf("expected second client-a request to be rejected")
	}
	if allowed, _, _ := limiter.Allow(ctx, "client-b"); !allowed {
		t.Fatalf("expected client-b to have its own bucket")
	}
}

func TestLimiter_DisabledWhenRateZero(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := NewRedisLimiter(rdb, "test:ratelimit:", 0, 0)

	for i := 0; i < 10; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "any")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("expected disabled limiter to always pass")
		}
	}
}

func TestLimiter_RefillOverTime(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := NewRedisLimiter(rdb, "test:ratelimit:", 100, 1)
	ctx := context.Background()

	if allowed, _, _ := limiter.Allow(ctx, "refill"); !allowed {
		t.Fatalf("expected first request to pass")
	}
	if allowed, _, _ := limiter.Allow(ctx, "refill"); allowed {
		t.Fatalf("expected bucket to be empty")
	}

	time.Sleep(50 * time.Millisecond)

	if allowed, _, _ := limiter.Allow(ctx, "refill"); !allowed {
		t.Fatalf("expected bucket to refill at 100 token/s")
	}
}
