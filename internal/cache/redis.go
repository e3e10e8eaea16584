/**
 * @description
 * Redis-backed implementation of the balance cache for multi-instance
 * deployments. Entries are stored as small JSON blobs with a PX expiry double
 * the freshness TTL so IsFresh still governs authority while Redis bounds
 * memory on its own.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client.
 */

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores balance snapshots in Redis under a configurable prefix.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisCache creates a Redis-backed balance cache. A non-positive ttl falls
// back to DefaultTTL.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "fondeo:balance"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client: client,
		prefix: trimmed,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *RedisCache) key(email string) string {
	return fmt.Sprintf("%s:%s", c.prefix, email)
}

// Get returns the cached entry for an email. Redis errors are logged and
// reported as a miss so a cache outage degrades to re-triggering, never to a
// failed request.
func (c *RedisCache) Get(ctx context.Context, email string) (Entry, bool) {
	raw, err := c.client.Get(ctx, c.key(email)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("level=warn component=cache msg=\"redis get failed\" key=%s err=%v", c.key(email), err)
		}
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		log.Printf("level=warn component=cache msg=\"redis entry malformed; dropping\" key=%s err=%v", c.key(email), err)
		c.client.Del(ctx, c.key(email))
		return Entry{}, false
	}
	return entry, true
}

// Set stores a balance snapshot observed now. Failures are logged and ignored;
// the cache is an optimization, not a system of record.
func (c *RedisCache) Set(ctx context.Context, email string, balance string) {
	entry := Entry{Balance: balance, ObservedAt: c.now()}
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Printf("level=warn component=cache msg=\"redis entry marshal failed\" err=%v", err)
		return
	}
	if err := c.client.Set(ctx, c.key(email), payload, 2*c.ttl).Err(); err != nil {
		log.Printf("level=warn component=cache msg=\"redis set failed\" key=%s err=%v", c.key(email), err)
	}
}

// Invalidate drops the entry for an email.
func (c *RedisCache) Invalidate(ctx context.Context, email string) {
	if err := c.client.Del(ctx, c.key(email)).Err(); err != nil {
		log.Printf("level=warn component=cache msg=\"redis delete failed\" key=%s err=%v", c.key(email), err)
	}
}

// IsFresh reports whether the entry is younger than the configured TTL.
func (c *RedisCache) IsFresh(entry Entry) bool {
	return entry.Age(c.now()) < c.ttl
}
