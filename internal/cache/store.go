// Package cache provides the read-through cache behind catalog reads:
// a byte-oriented Store with tag invalidation (in-memory or Redis) and a
// typed GetOrCompute helper.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Store is a byte-oriented cache keyed by string, with tag invalidation.
// Both MemoryStore and RedisStore implement it, so tests can use the
// in-memory map.
type Store interface {
	// Get returns the value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl and adds key to every tag.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error

	// InvalidateTag removes every key added under tag.
	InvalidateTag(ctx context.Context, tag string) error

	// Name identifies the backend in logs and metrics.
	Name() string
}

// GenerateKey creates a cache key from the method name and parameters
func GenerateKey(method string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Fallback to simple string key
		return fmt.Sprintf("%s:%v", method, params)
	}

	// Hash the JSON data for a compact key
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", method, hash[:16])
}
