package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dhkang/kiwoom-trader/internal/config"
	"github.com/dhkang/kiwoom-trader/internal/model"
)

// Cache stores the latest quote per stock so order guards and the risk
// engine read recent prices without hitting the REST API.
type Cache interface {
	// Set stores a quote under its stock code.
	Set(ctx context.Context, quote model.Quote) error

	// Get returns the cached quote for a code. The second return is
	// false on a miss or an expired entry.
	Get(ctx context.Context, code string) (model.Quote, bool, error)

	// Close releases any backing connections.
	Close() error
}

// New selects a backend from config: Redis when an address is set,
// otherwise in-process memory.
func New(cfg config.CacheConfig, logger *slog.Logger) Cache {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.RedisAddr != "" {
		logger.Info("quote cache using redis", "addr", cfg.RedisAddr, "ttl", cfg.TTL)
		return NewRedis(cfg.RedisAddr, cfg.TTL)
	}

	logger.Info("quote cache using memory", "ttl", cfg.TTL)
	return NewMemory(cfg.TTL)
}

// memoryCache is a TTL map.
type memoryCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	quote     model.Quote
	expiresAt time.Time
}

// NewMemory creates an in-process cache.
func NewMemory(ttl time.Duration) Cache {
	return &memoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (c *memoryCache) Set(ctx context.Context, quote model.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[quote.Code] = memoryEntry{
		quote:     quote,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

func (c *memoryCache) Get(ctx context.Context, code string) (model.Quote, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[code]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return model.Quote{}, false, nil
	}
	return entry.quote, true, nil
}

func (c *memoryCache) Close() error { return nil }

// redisCache stores quotes as JSON with a server-side TTL, so multiple
// processes against one account share the same view.
type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis creates a Redis-backed cache.
func NewRedis(addr string, ttl time.Duration) Cache {
	return &redisCache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

func quoteKey(code string) string {
	return "quote:" + code
}

func (c *redisCache) Set(ctx context.Context, quote model.Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	if err := c.rdb.Set(ctx, quoteKey(quote.Code), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", quote.Code, err)
	}
	return nil
}

func (c *redisCache) Get(ctx context.Context, code string) (model.Quote, bool, error) {
	data, err := c.rdb.Get(ctx, quoteKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Quote{}, false, nil
	}
	if err != nil {
		return model.Quote{}, false, fmt.Errorf("cache get %s: %w", code, err)
	}

	var quote model.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return model.Quote{}, false, fmt.Errorf("unmarshal quote %s: %w", code, err)
	}
	return quote, true, nil
}

func (c *redisCache) Close() error {
	return c.rdb.Close()
}
