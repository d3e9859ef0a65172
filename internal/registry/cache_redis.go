package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const participantKeyPrefix = "becknet:reg:"

// redisCache is the optional shared second-level participant cache. Multiple
// node instances behind one identity share fetched keys through it so a
// burst does not multiply registry load per instance. Entries carry the
// cache TTL; Redis expiry stands in for the freshness check.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisCache(client *redis.Client, ttl time.Duration) *redisCache {
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) get(ctx context.Context, key string) (Participant, bool) {
	raw, err := c.client.Get(ctx, participantKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) || err != nil {
		return Participant{}, false
	}
	var p Participant
	if err := json.Unmarshal(raw, &p); err != nil {
		return Participant{}, false
	}
	return p, true
}

func (c *redisCache) put(ctx context.Context, key string, p Participant) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	// Best effort: a write failure only costs a future shared hit.
	c.client.Set(ctx, participantKeyPrefix+key, raw, c.ttl)
}
