package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entries are namespaced by service and key schema; bump the version when Key changes.
const answerKeyPrefix = "opioid-assistant:answer:v2:"

func redisKey(key string) string { return answerKeyPrefix + key }

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client and checks connectivity.
func NewRedisCache(ctx context.Context, addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{
		client: client,
	}, nil
}

// GetAnswer retrieves a cached answer by key. An unreadable entry is deleted
// and reported as a miss.
func (c *RedisCache) GetAnswer(ctx context.Context, key string) (*Answer, error) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var answer Answer
	if err := json.Unmarshal(data, &answer); err != nil || answer.Text == "" {
		if delErr := c.client.Del(ctx, redisKey(key)).Err(); delErr != nil {
			return nil, fmt.Errorf("dropping unreadable cache entry: %w", delErr)
		}
		return nil, nil
	}
	return &answer, nil
}

// SetAnswer stores an answer with TTL. A non-positive TTL stores nothing so
// entries never outlive the configuration that produced them.
func (c *RedisCache) SetAnswer(ctx context.Context, key string, answer *Answer, ttl time.Duration) error {
	if ttl <= 0 || answer == nil {
		return nil
	}
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKey(key), data, ttl).Err()
}

// Close closes the cache connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
