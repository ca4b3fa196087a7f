package cache

import (
	"context"
	"real-estate-catalog/internal/metrics"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// TagCatalog is shared by every catalog read; any successful mutation busts it
const TagCatalog = "catalog"

// Cache wraps a Store with a default TTL, a JSON codec and logging.
// A nil *Cache disables caching.
type Cache struct {
	store Store
	ttl   time.Duration
	log   *logrus.Logger
}

// New creates a cache over store
func New(store Store, ttl time.Duration, log *logrus.Logger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{store: store, ttl: ttl, log: log}
}

// InvalidateTag drops every entry written under tag
func (c *Cache) InvalidateTag(ctx context.Context, tag string) error {
	if c == nil {
		return nil
	}
	metrics.CacheInvalidations.WithLabelValues(tag).Inc()
	if err := c.store.InvalidateTag(ctx, tag); err != nil {
		c.log.WithError(err).WithField("tag", tag).Error("Cache invalidation failed")
		return err
	}
	c.log.WithField("tag", tag).Debug("Cache tag invalidated")
	return nil
}

// GetOrCompute returns the cached value for key, or runs compute and stores
// its result under tags. Errors from compute are returned and never cached.
// Concurrent misses on one key may both compute; the last write wins.
// Cache backend failures degrade to computing without caching.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error), tags ...string) (T, error) {
	if c == nil {
		return compute(ctx)
	}
	backend := c.store.Name()

	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			metrics.CacheHits.WithLabelValues(backend).Inc()
			return v, nil
		}
		c.log.WithField("key", key).Warn("Discarding undecodable cache entry")
	}
	metrics.CacheMisses.WithLabelValues(backend).Inc()

	v, err := compute(ctx)
	if err != nil {
		return v, err
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache encode failed")
		return v, nil
	}
	if err := c.store.Set(ctx, key, encoded, c.ttl, tags...); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
	return v, nil
}
