package discounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by a RulesCache that holds no snapshot.
var ErrCacheMiss = errors.New("cache miss")

const activeRulesKey = "discounts:active"

// RulesCache holds a snapshot of the active rule set.
type RulesCache interface {
	Get(ctx context.Context) ([]Record, error)
	Set(ctx context.Context, rules []Record) error
	Invalidate(ctx context.Context) error
}

// RedisCache keeps the active rule snapshot in Redis.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context) ([]Record, error) {
	data, err := r.client.Get(ctx, activeRulesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var rules []Record
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules failed: %w", err)
	}
	return rules, nil
}

func (r *RedisCache) Set(ctx context.Context, rules []Record) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal rules failed: %w", err)
	}

	// up to a fifth of the base TTL so replicas do not expire together
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL)/5 + 1))
	if err := r.client.Set(ctx, activeRulesKey, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, activeRulesKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// NopCache never holds anything; every read goes to the store.
type NopCache struct{}

func (NopCache) Get(context.Context) ([]Record, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, []Record) error { return nil }
func (NopCache) Invalidate(context.Context) error { return nil }
