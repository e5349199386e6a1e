package messaging

import (
	"context"
	"sync"

	redisinfra "github.com/quizhub/rewards-hub/internal/infrastructure/persistence/redis"
)

// CacheRedisClient adapts the cache client to the RedisClient interface
// the event bus consumes.
type CacheRedisClient struct {
	cache *redisinfra.Cache

	mu      sync.Mutex
	pubsubs []interface{ Close() error }
}

// NewCacheRedisClient wraps an existing cache connection.
func NewCacheRedisClient(cache *redisinfra.Cache) *CacheRedisClient {
	return &CacheRedisClient{cache: cache}
}

// Publish sends a message on a channel. Strings pass through untouched
// so an already-serialized envelope is not JSON-encoded twice.
func (c *CacheRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if s, ok := message.(string); ok {
		return c.cache.Client().Publish(ctx, channel, s).Err()
	}
	return c.cache.Publish(ctx, channel, message)
}

// Subscribe opens a subscription and bridges it onto a RedisMessage channel.
func (c *CacheRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	pubsub := c.cache.Subscribe(ctx, channels...)

	c.mu.Lock()
	c.pubsubs = append(c.pubsubs, pubsub)
	c.mu.Unlock()

	out := make(chan RedisMessage, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close closes all open subscriptions. The cache connection itself is
// owned by the caller.
func (c *CacheRedisClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, ps := range c.pubsubs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.pubsubs = nil
	return firstErr
}
