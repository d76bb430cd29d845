package policy

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"checkpoint/internal/policy/metrics"
	id "checkpoint/pkg/domain"
)

// CachedStore wraps a Store with a Redis read-through cache for the hot
// resolution path. Publish writes through to the backing store and drops the
// cached entries so the next resolution sees the new version.
//
// Cache failures never fail a lookup; they degrade to the backing store.
type CachedStore struct {
	store   Store
	redis   *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// CachedStoreOption configures a CachedStore.
type CachedStoreOption func(*CachedStore)

// WithCacheLogger sets the cache logger.
func WithCacheLogger(logger *slog.Logger) CachedStoreOption {
	return func(c *CachedStore) { c.logger = logger }
}

// WithCacheMetrics sets the cache metrics.
func WithCacheMetrics(m *metrics.Metrics) CachedStoreOption {
	return func(c *CachedStore) { c.metrics = m }
}

// NewCachedStore wraps store with a Redis cache of the given TTL.
func NewCachedStore(store Store, client *redis.Client, ttl time.Duration, opts ...CachedStoreOption) *CachedStore {
	c := &CachedStore{store: store, redis: client, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedStore) Publish(ctx context.Context, p *Policy) (*Policy, error) {
	stored, err := c.store.Publish(ctx, p)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, stored)
	return stored, nil
}

func (c *CachedStore) GetCurrent(ctx context.Context, policyID id.PolicyID) (*Policy, error) {
	key := "checkpoint:policy:current:" + policyID.String()
	if p, ok := c.cached(ctx, key); ok {
		return p, nil
	}
	p, err := c.store.GetCurrent(ctx, policyID)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, p)
	return p, nil
}

func (c *CachedStore) ResolveForOffice(ctx context.Context, officeID *id.OfficeID) (*Policy, error) {
	key := "checkpoint:policy:resolve:global"
	if officeID != nil {
		key = "checkpoint:policy:resolve:office:" + officeID.String()
	}
	if p, ok := c.cached(ctx, key); ok {
		return p, nil
	}
	p, err := c.store.ResolveForOffice(ctx, officeID)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, p)
	return p, nil
}

func (c *CachedStore) ListCurrent(ctx context.Context) ([]*Policy, error) {
	// Admin listing path, not hot. Always hits the backing store.
	return c.store.ListCurrent(ctx)
}

func (c *CachedStore) cached(ctx context.Context, key string) (*Policy, bool) {
	if c.redis == nil {
		return nil, false
	}
	payload, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.metrics.IncrementCacheLookup("error")
			if c.logger != nil {
				c.logger.WarnContext(ctx, "policy cache read failed", "key", key, "error", err)
			}
			return nil, false
		}
		c.metrics.IncrementCacheLookup("miss")
		return nil, false
	}
	var p Policy
	if err := json.Unmarshal(payload, &p); err != nil {
		c.metrics.IncrementCacheLookup("error")
		return nil, false
	}
	c.metrics.IncrementCacheLookup("hit")
	return &p, true
}

func (c *CachedStore) fill(ctx context.Context, key string, p *Policy) {
	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "policy cache write failed", "key", key, "error", err)
	}
}

// invalidate drops the entries a new version directly shadows. A global
// publish can also shift resolution for offices whose keys stay cached;
// those converge within the TTL.
func (c *CachedStore) invalidate(ctx context.Context, p *Policy) {
	if c.redis == nil {
		return
	}
	keys := []string{
		"checkpoint:policy:current:" + p.ID.String(),
		"checkpoint:policy:resolve:global",
	}
	if p.OfficeID != nil {
		keys = append(keys, "checkpoint:policy:resolve:office:"+p.OfficeID.String())
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "policy cache invalidation failed", "policy_id", p.ID, "error", err)
	}
}
