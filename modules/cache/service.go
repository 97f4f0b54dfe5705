// Package cache provides a Redis read-through cache as a mono plugin.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono/pkg/storage"
	"github.com/go-monolith/mono/pkg/types"
	goredis "github.com/redis/go-redis/v9"
)

// CacheService defines the caching operations used by consumers.
type CacheService interface {
	// Get unmarshals the cached value into dest. It reports false on a miss.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores a JSON-encoded value with the default TTL.
	Set(ctx context.Context, key string, value any) error

	// SetWithTTL stores a JSON-encoded value with a custom TTL.
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key under this service's prefix matching pattern.
	DeletePattern(ctx context.Context, pattern string) error

	// Stats returns a snapshot of the hit/miss counters.
	Stats() StatsSnapshot

	// Close closes the underlying connection.
	Close() error
}

// Stats tracks cache statistics.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Sets    uint64
	Deletes uint64
	Errors  uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Enabled   bool    `json:"enabled"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Deletes   uint64  `json:"deletes"`
	Errors    uint64  `json:"errors"`
	HitRate   float64 `json:"hit_rate"`
	TotalGets uint64  `json:"total_gets"`
}

// cacheService implements CacheService over a mono storage.Storage.
// Pattern deletes go through the raw Redis client since Storage has no SCAN.
type cacheService struct {
	storage storage.Storage
	scanner goredis.UniversalClient
	prefix  string
	ttl     time.Duration
	stats   Stats
	logger  types.Logger
}

// NewCacheService wraps the given storage and Redis client.
func NewCacheService(s storage.Storage, scanner goredis.UniversalClient, prefix string, ttl time.Duration, logger types.Logger) CacheService {
	return &cacheService{
		storage: s,
		scanner: scanner,
		prefix:  prefix,
		ttl:     ttl,
		logger:  logger,
	}
}

// Get retrieves a value from the cache.
func (c *cacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	fullKey := c.prefix + key

	data, err := c.storage.GetWithContext(ctx, fullKey)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, fmt.Errorf("cache get error: %w", err)
	}

	// nil or empty means the key is absent
	if len(data) == 0 {
		atomic.AddUint64(&c.stats.Misses, 1)
		c.logger.Debug("Cache miss", "key", fullKey)
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	atomic.AddUint64(&c.stats.Hits, 1)
	c.logger.Debug("Cache hit", "key", fullKey)
	return true, nil
}

// Set stores a value with the default TTL.
func (c *cacheService) Set(ctx context.Context, key string, value any) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *cacheService) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	fullKey := c.prefix + key

	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.storage.SetWithContext(ctx, fullKey, data, ttl); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache set error: %w", err)
	}

	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}

// Delete removes a single key.
func (c *cacheService) Delete(ctx context.Context, key string) error {
	fullKey := c.prefix + key

	if err := c.storage.DeleteWithContext(ctx, fullKey); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache delete error: %w", err)
	}

	atomic.AddUint64(&c.stats.Deletes, 1)
	return nil
}

// DeletePattern scans for prefixed keys matching pattern and deletes them.
func (c *cacheService) DeletePattern(ctx context.Context, pattern string) error {
	fullPattern := c.prefix + pattern

	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.scanner.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			atomic.AddUint64(&c.stats.Errors, 1)
			return fmt.Errorf("cache scan error: %w", err)
		}

		if len(keys) > 0 {
			if err := c.scanner.Del(ctx, keys...).Err(); err != nil {
				atomic.AddUint64(&c.stats.Errors, 1)
				return fmt.Errorf("cache delete error: %w", err)
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	atomic.AddUint64(&c.stats.Deletes, uint64(deleted))
	return nil
}

// Stats returns the current counters.
func (c *cacheService) Stats() StatsSnapshot {
	return snapshot(&c.stats, true)
}

// Close closes the underlying storage.
func (c *cacheService) Close() error {
	return c.storage.Close()
}

func snapshot(s *Stats, enabled bool) StatsSnapshot {
	hits := atomic.LoadUint64(&s.Hits)
	misses := atomic.LoadUint64(&s.Misses)
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return StatsSnapshot{
		Enabled:   enabled,
		Hits:      hits,
		Misses:    misses,
		Sets:      atomic.LoadUint64(&s.Sets),
		Deletes:   atomic.LoadUint64(&s.Deletes),
		Errors:    atomic.LoadUint64(&s.Errors),
		HitRate:   hitRate,
		TotalGets: total,
	}
}

// noopCache always misses. It stands in when no Redis address is configured.
type noopCache struct {
	stats Stats
}

// Disabled returns a CacheService that stores nothing.
func Disabled() CacheService {
	return &noopCache{}
}

func (n *noopCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	atomic.AddUint64(&n.stats.Misses, 1)
	return false, nil
}

func (n *noopCache) Set(_ context.Context, _ string, _ any) error { return nil }

func (n *noopCache) SetWithTTL(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (n *noopCache) Delete(_ context.Context, _ string) error { return nil }

func (n *noopCache) DeletePattern(_ context.Context, _ string) error { return nil }

func (n *noopCache) Stats() StatsSnapshot { return snapshot(&n.stats, false) }

func (n *noopCache) Close() error { return nil }
