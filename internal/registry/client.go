package registry

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"becknet/internal/platform/metrics"
	"becknet/internal/signing"
)

// Client resolves participants with a two-level cache (per-process map,
// optional shared Redis) in front of the upstream registry. Concurrent
// lookups for the same key collapse into a single upstream call.
type Client struct {
	upstream Upstream
	cache    *memoryCache
	shared   *redisCache
	ttl      time.Duration
	sf       singleflight.Group
	logger   *slog.Logger
	metrics  *metrics.Metrics
	// now is overridable for tests.
	now func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithSharedCache adds a Redis second-level cache. A nil client is ignored.
func WithSharedCache(rdb *redis.Client) Option {
	return func(c *Client) {
		if rdb != nil {
			c.shared = newRedisCache(rdb, c.ttl)
		}
	}
}

// WithMetrics records cache hit/miss/stale counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the freshness clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient builds a registry client with the given cache TTL.
func NewClient(upstream Upstream, ttl time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		upstream: upstream,
		cache:    newMemoryCache(),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup resolves a participant by id and key version. Fresh cached copies
// are returned directly; otherwise the upstream is fetched once per key
// regardless of concurrency. When the upstream is unreachable an expired
// cached copy is returned flagged Stale rather than failing outright.
func (c *Client) Lookup(ctx context.Context, subscriberID, uniqueKeyID string) (Record, error) {
	key := subscriberID + "|" + uniqueKeyID

	if rec, ok, fresh := c.cache.get(key, c.ttl, c.now()); ok && fresh {
		c.metrics.ObserveLookup("hit")
		return rec, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		return c.fetch(ctx, key, subscriberID, uniqueKeyID)
	})
	if err != nil {
		return Record{}, err
	}
	return v.(Record), nil
}

func (c *Client) fetch(ctx context.Context, key, subscriberID, uniqueKeyID string) (Record, error) {
	// A peer holding the flight may have refreshed the entry already.
	if rec, ok, fresh := c.cache.get(key, c.ttl, c.now()); ok && fresh {
		return rec, nil
	}

	if c.shared != nil {
		if p, ok := c.shared.get(ctx, key); ok {
			rec := Record{Participant: p, FetchedAt: c.now()}
			c.cache.put(key, rec)
			c.metrics.ObserveLookup("shared")
			return rec, nil
		}
	}

	participants, err := c.upstream.Lookup(ctx, LookupRequest{
		SubscriberID: subscriberID,
		UniqueKeyID:  uniqueKeyID,
	})
	if err != nil {
		return c.degrade(key, subscriberID, err)
	}

	match, found := pickKey(participants, uniqueKeyID)
	if !found {
		c.metrics.ObserveLookup("not_found")
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	rec := Record{Participant: match, FetchedAt: c.now()}
	c.cache.put(key, rec)
	if c.shared != nil {
		c.shared.put(ctx, key, match)
	}
	c.metrics.ObserveLookup("miss")
	return rec, nil
}

// degrade returns an expired cached copy flagged stale when the upstream is
// unreachable, keeping the network degrading gracefully instead of failing.
func (c *Client) degrade(key, subscriberID string, cause error) (Record, error) {
	if errors.Is(cause, ErrNotFound) {
		c.metrics.ObserveLookup("not_found")
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if rec, ok, _ := c.cache.get(key, c.ttl, c.now()); ok {
		c.logger.Warn("registry unreachable, serving stale cache entry",
			"subscriber_id", subscriberID,
			"fetched_at", rec.FetchedAt,
			"error", cause.Error(),
		)
		rec.Stale = true
		c.metrics.ObserveLookup("stale")
		return rec, nil
	}
	c.metrics.ObserveLookup("unavailable")
	return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, cause)
}

func pickKey(participants []Participant, uniqueKeyID string) (Participant, bool) {
	for _, p := range participants {
		if p.UniqueKeyID == uniqueKeyID {
			return p, true
		}
	}
	// Registries answer with the subscriber's current key set; if the exact
	// version is absent, fall back to the first published key.
	if len(participants) > 0 {
		return participants[0], true
	}
	return Participant{}, false
}

// ListEligible returns the active participants serving both the domain and
// the city. Used exclusively by the discovery fan-out.
func (c *Client) ListEligible(ctx context.Context, domain, city string) ([]Participant, error) {
	key := "eligible|" + domain + "|" + city

	if set, ok, fresh := c.cache.getSet(key, c.ttl, c.now()); ok && fresh {
		c.metrics.ObserveLookup("hit")
		return filterEligible(set, domain, city, c.now()), nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		participants, err := c.upstream.Lookup(ctx, LookupRequest{
			Domain: domain,
			City:   city,
			Type:   "BPP",
		})
		if err != nil {
			if set, ok, _ := c.cache.getSet(key, c.ttl, c.now()); ok {
				c.logger.Warn("registry unreachable, serving stale eligible set",
					"domain", domain,
					"city", city,
					"error", err.Error(),
				)
				c.metrics.ObserveLookup("stale")
				return set, nil
			}
			c.metrics.ObserveLookup("unavailable")
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.cache.putSet(key, participants, c.now())
		for _, p := range participants {
			rec := Record{Participant: p, FetchedAt: c.now()}
			c.cache.put(p.SubscriberID+"|"+p.UniqueKeyID, rec)
		}
		c.metrics.ObserveLookup("miss")
		return participants, nil
	})
	if err != nil {
		return nil, err
	}
	return filterEligible(v.([]Participant), domain, city, c.now()), nil
}

func filterEligible(participants []Participant, domain, city string, now time.Time) []Participant {
	eligible := make([]Participant, 0, len(participants))
	for _, p := range participants {
		if p.ActiveAt(now) && p.Serves(domain, city) {
			eligible = append(eligible, p)
		}
	}
	return eligible
}

// Register submits a new participant's details upstream.
func (c *Client) Register(ctx context.Context, sub Subscription) error {
	if err := c.upstream.Subscribe(ctx, sub); err != nil {
		return fmt.Errorf("register participant %s: %w", sub.SubscriberID, err)
	}
	return nil
}

// ResolveKey adapts the client to the signature verifier's resolver port.
// Stale copies still resolve: a signature verified against a stale key is
// the caller's trust decision, not a resolution failure.
func (c *Client) ResolveKey(ctx context.Context, subscriberID, uniqueKeyID string) (ed25519.PublicKey, error) {
	rec, err := c.Lookup(ctx, subscriberID, uniqueKeyID)
	if err != nil {
		return nil, err
	}
	return signing.DecodePublicKey(rec.SigningPublicKey)
}
