package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/chainswarm/chainswarm-go/internal/market"
)

// priceCacheEntry is the serialized form stored in Redis.
type priceCacheEntry struct {
	Price    decimal.Decimal `json:"price"`
	CachedAt time.Time       `json:"cached_at"`
}

// PriceCacheStats tracks cache performance counters.
type PriceCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// RedisPriceCache decorates a PriceOracle with a short-TTL Redis cache so a
// scan cycle does not hammer the upstream oracle for every chain pair sharing
// a token. Cache failures degrade to direct oracle reads.
type RedisPriceCache struct {
	oracle market.PriceOracle
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger *logrus.Logger

	mu    sync.Mutex
	stats PriceCacheStats
}

// NewRedisPriceCache wraps oracle with a Redis-backed cache.
func NewRedisPriceCache(oracle market.PriceOracle, redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisPriceCache {
	if logger == nil {
		logger = logrus.New()
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisPriceCache{
		oracle: oracle,
		redis:  redisClient,
		ttl:    ttl,
		prefix: "price:",
		logger: logger,
	}
}

// GetPrice implements market.PriceOracle. ErrPriceUnavailable from the
// upstream oracle is never cached; the next cycle should probe again.
func (c *RedisPriceCache) GetPrice(ctx context.Context, chain, token string) (decimal.Decimal, error) {
	key := c.key(chain, token)

	data, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var entry priceCacheEntry
		if jsonErr := json.Unmarshal([]byte(data), &entry); jsonErr == nil {
			c.record(func(s *PriceCacheStats) { s.Hits++ })
			return entry.Price, nil
		}
		c.logger.WithField("key", key).Warn("Discarding undecodable price cache entry")
	} else if err != redis.Nil {
		c.logger.WithError(err).WithField("key", key).Warn("Redis read failed, falling through to oracle")
	}
	c.record(func(s *PriceCacheStats) { s.Misses++ })

	price, err := c.oracle.GetPrice(ctx, chain, token)
	if err != nil {
		return decimal.Zero, err
	}

	entry := priceCacheEntry{Price: price, CachedAt: time.Now()}
	if payload, jsonErr := json.Marshal(entry); jsonErr == nil {
		if setErr := c.redis.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.WithError(setErr).WithField("key", key).Warn("Redis write failed")
		} else {
			c.record(func(s *PriceCacheStats) { s.Sets++ })
		}
	}
	return price, nil
}

// Invalidate drops cached prices for the given chain/token combinations.
func (c *RedisPriceCache) Invalidate(ctx context.Context, pairs ...[2]string) error {
	if len(pairs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, c.key(p[0], p[1]))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate price cache: %w", err)
	}
	return nil
}

// Stats returns a copy of the current counters.
func (c *RedisPriceCache) Stats() PriceCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *RedisPriceCache) key(chain, token string) string {
	return c.prefix + chain + ":" + token
}

func (c *RedisPriceCache) record(fn func(*PriceCacheStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
