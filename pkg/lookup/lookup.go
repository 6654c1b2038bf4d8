// Package lookup provides a write-through cache for "latest id published on
// this topic", fronting the store adapter's synchronous select-latest
// statement so the common case of a retained delete that omits a ulid
// property (spec.md §4.7 step 3(b)) doesn't need a database round trip.
package lookup

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache is the write-through interface the event handler consults before
// falling back to the store adapter. Get's second return value reports
// whether the topic has a cached entry at all; a cache miss is not an
// error, and callers fall back to store.LatestID on either a miss or an
// error.
type Cache interface {
	Get(ctx context.Context, topic string) (id string, ok bool, err error)
	Set(ctx context.Context, topic, id string) error
	Invalidate(ctx context.Context, topic string) error
	Close() error
}

type entry struct {
	topic string
	id    string
}

// MemoryCache is a fixed-size, thread-safe, in-memory LRU cache keyed by
// topic. It never calls out to the store itself — the event handler is the
// one fallback path, modeled directly rather than through a generic
// fetcher abstraction.
type MemoryCache struct {
	maxSize int

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
}

// NewMemoryCache creates an LRU cache holding at most maxSize topics.
func NewMemoryCache(maxSize int) (*MemoryCache, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("lookup: maxSize must be greater than 0")
	}
	return &MemoryCache{
		maxSize: maxSize,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
	}, nil
}

func (c *MemoryCache) Get(_ context.Context, topic string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[topic]
	if !ok {
		return "", false, nil
	}
	c.ll.MoveToFront(elem)
	return elem.Value.(*entry).id, true, nil
}

func (c *MemoryCache) Set(_ context.Context, topic, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[topic]; ok {
		elem.Value.(*entry).id = id
		c.ll.MoveToFront(elem)
		return nil
	}

	elem := c.ll.PushFront(&entry{topic: topic, id: id})
	c.items[topic] = elem

	if c.ll.Len() > c.maxSize {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).topic)
		}
	}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[topic]; ok {
		c.ll.Remove(elem)
		delete(c.items, topic)
	}
	return nil
}

func (c *MemoryCache) Close() error { return nil }

// RedisConfig configures the optional Redis-backed cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache backs the latest-id lookup with Redis, for deployments running
// the plugin across multiple broker processes sharing one store file over a
// network filesystem.
type RedisCache struct {
	client *redis.Client
	log    zerolog.Logger
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies connectivity before
// returning.
func NewRedisCache(ctx context.Context, cfg RedisConfig, log zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("lookup: connect to redis: %w", err)
	}
	return &RedisCache{
		client: client,
		log:    log.With().Str("component", "lookup.redis").Logger(),
		ttl:    cfg.TTL,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, topic string) (string, bool, error) {
	raw, err := c.client.Get(ctx, topic).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup: redis get %q: %w", topic, err)
	}
	var id string
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return "", false, fmt.Errorf("lookup: unmarshal cached id for %q: %w", topic, err)
	}
	return id, true, nil
}

func (c *RedisCache) Set(ctx context.Context, topic, id string) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("lookup: marshal id for %q: %w", topic, err)
	}
	if err := c.client.Set(ctx, topic, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("lookup: redis set %q: %w", topic, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, topic string) error {
	if err := c.client.Del(ctx, topic).Err(); err != nil {
		return fmt.Errorf("lookup: redis del %q: %w", topic, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	c.log.Info().Msg("closing redis lookup cache connection")
	return c.client.Close()
}
