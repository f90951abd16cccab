package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
)

// HistoryCache stores fetched histories keyed by pair and window, with TTL expiry.
type HistoryCache interface {
	Get(ctx context.Context, pair string, limit int) ([]model.PricePoint, bool)
	Set(ctx context.Context, pair string, limit int, points []model.PricePoint, ttl time.Duration)
}

func historyKey(pair string, limit int) string {
	return fmt.Sprintf("history:%s:%d", pair, limit)
}

type cacheEntry struct {
	points []model.PricePoint
	exp    time.Time
}

// MemoryCache is an in-process HistoryCache.
type MemoryCache struct {
	mu  sync.Mutex
	m   map[string]cacheEntry
	now func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]cacheEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, pair string, limit int) ([]model.PricePoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := historyKey(pair, limit)
	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		return nil, false
	}
	out := make([]model.PricePoint, len(e.points))
	copy(out, e.points)
	return out, true
}

func (c *MemoryCache) Set(_ context.Context, pair string, limit int, points []model.PricePoint, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := cacheEntry{points: append([]model.PricePoint(nil), points...)}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.m[historyKey(pair, limit)] = e
}

// RedisCache is a HistoryCache shared through Redis. Errors degrade to misses.
type RedisCache struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, timeout: 500 * time.Millisecond}
}

// DialRedisCache connects to addr and verifies it with PING.
func DialRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisCache(client), nil
}

// Close releases the underlying client.
func (r *RedisCache) Close() error { return r.client.Close() }

func (r *RedisCache) Get(ctx context.Context, pair string, limit int) ([]model.PricePoint, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	raw, err := r.client.Get(ctx, historyKey(pair, limit)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("pair", pair).Msg("redis history cache get failed")
		}
		return nil, false
	}
	var points []model.PricePoint
	if err := json.Unmarshal(raw, &points); err != nil {
		log.Warn().Err(err).Str("pair", pair).Msg("discarding undecodable cached history")
		return nil, false
	}
	return points, true
}

func (r *RedisCache) Set(ctx context.Context, pair string, limit int, points []model.PricePoint, ttl time.Duration) {
	raw, err := json.Marshal(points)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Set(ctx, historyKey(pair, limit), string(raw), ttl).Err(); err != nil {
		log.Warn().Err(err).Str("pair", pair).Msg("redis history cache set failed")
	}
}
