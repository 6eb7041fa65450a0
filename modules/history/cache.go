package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/redis/go-redis/v9"
)

// ErrStaleSnapshot is returned by SetRecent when the room was written to after
// the snapshot's generation was read.
var ErrStaleSnapshot = errors.New("history snapshot is stale")

// generationTTL outlives any cached snapshot. An expired counter reads as 0,
// which never matches a generation taken before the expiry.
const generationTTL = 24 * time.Hour

// Cache keeps recent-history reads in Redis. Each room is one hash keyed by
// limit, so appending a message invalidates the room with a single DEL. A
// per-room generation counter is bumped on every invalidation.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits     atomic.Uint64
	misses   atomic.Uint64
	failures atomic.Uint64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Errors  uint64  `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// NewCache creates a history cache.
func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *Cache) key(room string) string {
	return c.prefix + room
}

func (c *Cache) generationKey(room string) string {
	return c.prefix + "gen:" + room
}

// Generation returns the current write generation of room.
func (c *Cache) Generation(ctx context.Context, room string) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(room)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		c.failures.Add(1)
		return 0, fmt.Errorf("cache generation error: %w", err)
	}
	return gen, nil
}

// GetRecent returns the cached history for room and limit, reporting whether it was found.
func (c *Cache) GetRecent(ctx context.Context, room string, limit int) ([]domain.Message, bool, error) {
	data, err := c.client.HGet(ctx, c.key(room), strconv.Itoa(limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, false, nil
		}
		c.failures.Add(1)
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var msgs []domain.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		c.failures.Add(1)
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	c.hits.Add(1)
	return msgs, true, nil
}

// SetRecent stores the history for room and limit, read at generation. It
// returns ErrStaleSnapshot and stores nothing if the room was invalidated since.
func (c *Cache) SetRecent(ctx context.Context, room string, limit int, generation int64, msgs []domain.Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		c.failures.Add(1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	key := c.key(room)
	genKey := c.generationKey(room)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return ErrStaleSnapshot
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, strconv.Itoa(limit), data)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleSnapshot), errors.Is(err, redis.TxFailedErr):
		return ErrStaleSnapshot
	default:
		c.failures.Add(1)
		return fmt.Errorf("cache set error: %w", err)
	}
}

// InvalidateRoom bumps the room generation and drops every cached history of room.
func (c *Cache) InvalidateRoom(ctx context.Context, room string) error {
	genKey := c.generationKey(room)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, c.key(room))
		return nil
	})
	if err != nil {
		c.failures.Add(1)
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// Stats returns the current cache counters.
func (c *Cache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return CacheStats{
		Hits:    hits,
		Misses:  misses,
		Errors:  c.failures.Load(),
		HitRate: hitRate,
	}
}

// Ping checks if the Redis connection is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
