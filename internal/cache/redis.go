package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abelbrown/pulse/internal/model"
)

const (
	redisKeyPrefix = "pulse:insights:"

	// Entries outlive a calendar day so the day check, not expiry, decides freshness.
	redisEntryTTL = 36 * time.Hour
)

// RedisTier is a Hot tier shared by several processes through Redis.
type RedisTier struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisTier connects to Redis and verifies it with a ping.
func NewRedisTier(addr, password string, db int) (*RedisTier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	return &RedisTier{client: client, prefix: redisKeyPrefix, ttl: redisEntryTTL}, nil
}

func (r *RedisTier) key(category model.Category) string {
	return r.prefix + string(category)
}

func (r *RedisTier) Get(ctx context.Context, category model.Category) (Entry, bool, error) {
	data, err := r.client.Get(ctx, r.key(category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode entry: %w", err)
	}
	return e, true, nil
}

func (r *RedisTier) Put(ctx context.Context, category model.Category, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := r.client.Set(ctx, r.key(category), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisTier) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(model.Categories()))
	for _, c := range model.Categories() {
		keys = append(keys, r.key(c))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisTier) Close() error {
	return r.client.Close()
}
