package tokenblock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "todohub:token:blocked:"

// Blocklist 记录已注销的 JWT。
//
// 登出和修改密码会把当前 token 写入黑名单，TTL 等于 token 的剩余有效期，
// 过期后由 Redis 自行清理。Redis 中只存 token 的 sha256，不存原文。
type Blocklist struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Blocklist {
	return &Blocklist{rdb: rdb}
}

// Block 将 token 加入黑名单，ttl 为其剩余有效期。
func (b *Blocklist) Block(ctx context.Context, token string, ttl time.Duration) error {
	if b == nil || b.rdb == nil || token == "" {
		return nil
	}
	if ttl <= 0 {
		// 已过期的 token 无需入库
		return nil
	}
	key := keyPrefix + hashToken(token)
	if err := b.rdb.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("tokenblock set: %w", err)
	}
	return nil
}

// IsBlocked 判断 token 是否已被注销。
//
// Redis 不可用时返回错误，由调用方决定放行还是拒绝。
func (b *Blocklist) IsBlocked(ctx context.Context, token string) (bool, error) {
	if b == nil || b.rdb == nil || token == "" {
		return false, nil
	}
	key := keyPrefix + hashToken(token)
	n, err := b.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("tokenblock exists: %w", err)
	}
	return n > 0, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
