package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suitpax/orderchanges/config"
)

type RedisCache struct {
	client         *redis.Client
	eligibilityTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, eligibilityTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:         redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		eligibilityTTL: eligibilityTTL,
	}
}

// ResolveSession returns the user id behind a session token, or "" when the
// token is unknown or expired.
func (c *RedisCache) ResolveSession(ctx context.Context, token string) (string, error) {
	userID, err := c.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return userID, nil
}

func (c *RedisCache) StoreSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	return c.client.Set(ctx, sessionKey(token), userID, ttl).Err()
}

func (c *RedisCache) GetEligibility(ctx context.Context, orderID string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, eligibilityKey(orderID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) SetEligibility(ctx context.Context, orderID string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, eligibilityKey(orderID), payload, c.eligibilityTTL).Err()
}

func (c *RedisCache) AcquireConfirmLock(ctx context.Context, changeRequestID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, confirmLockKey(changeRequestID), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseConfirmLock(ctx context.Context, changeRequestID string) error {
	return c.client.Del(ctx, confirmLockKey(changeRequestID)).Err()
}

func sessionKey(token string) string {
	return "session:" + token
}

func eligibilityKey(orderID string) string {
	return fmt.Sprintf("cache:eligibility:%s", orderID)
}

func confirmLockKey(changeRequestID string) string {
	return fmt.Sprintf("lock:change_request:%s:confirm", changeRequestID)
}
