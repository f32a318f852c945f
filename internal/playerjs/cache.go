package playerjs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// Cache stores fetched player scripts keyed by normalized script URL.
type Cache interface {
	Get(ctx context.Context, key string) (*Script, bool)
	Set(ctx context.Context, key string, script *Script)
}

const DefaultScriptTTL = 24 * time.Hour

type memoryCache struct {
	items *gocache.Cache
	ttl   time.Duration
}

// NewMemoryCache returns a process-local cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) Cache {
	if ttl <= 0 {
		ttl = DefaultScriptTTL
	}
	return &memoryCache{items: gocache.New(ttl, ttl/2), ttl: ttl}
}

// remaining is how long script may still be cached. Scripts without an
// expiry get the cache default (zero).
func remaining(script *Script) (time.Duration, bool) {
	if script.ExpiresAt.IsZero() {
		return gocache.DefaultExpiration, true
	}
	d := time.Until(script.ExpiresAt)
	return d, d > 0
}

func (c *memoryCache) Get(_ context.Context, key string) (*Script, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	script := v.(*Script)
	if _, live := remaining(script); !live {
		c.items.Delete(key)
		return nil, false
	}
	return script, true
}

// Set keeps script until its ExpiresAt, never longer than the cache TTL.
func (c *memoryCache) Set(_ context.Context, key string, script *Script) {
	d, live := remaining(script)
	if !live {
		c.items.Delete(key)
		return
	}
	if d > c.ttl {
		d = c.ttl
	}
	c.items.Set(key, script, d)
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache shares script text between processes.
func NewRedisCache(client *redis.Client, ttl time.Duration) Cache {
	if ttl <= 0 {
		ttl = DefaultScriptTTL
	}
	return &redisCache{client: client, ttl: ttl, prefix: "ytcipher:player:"}
}

func (c *redisCache) Get(ctx context.Context, key string) (*Script, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var script Script
	if err := json.Unmarshal(raw, &script); err != nil {
		return nil, false
	}
	if !script.ExpiresAt.IsZero() && time.Now().After(script.ExpiresAt) {
		return nil, false
	}
	return &script, true
}

func (c *redisCache) Set(ctx context.Context, key string, script *Script) {
	d, live := remaining(script)
	if !live {
		return
	}
	if d == gocache.DefaultExpiration || d > c.ttl {
		d = c.ttl
	}
	raw, err := json.Marshal(script)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.prefix+key, raw, d).Err()
}

type tieredCache []Cache

// NewTieredCache consults caches in order and backfills earlier tiers on a
// hit in a later one.
func NewTieredCache(caches ...Cache) Cache {
	return tieredCache(caches)
}

func (t tieredCache) Get(ctx context.Context, key string) (*Script, bool) {
	for i, c := range t {
		if script, ok := c.Get(ctx, key); ok {
			if _, live := remaining(script); !live {
				continue
			}
			for j := 0; j < i; j++ {
				t[j].Set(ctx, key, script)
			}
			return script, true
		}
	}
	return nil, false
}

func (t tieredCache) Set(ctx context.Context, key string, script *Script) {
	for _, c := range t {
		c.Set(ctx, key, script)
	}
}
