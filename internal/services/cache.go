package services

import (
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

// MappingCache keeps user id to schema name lookups in memory. Mappings are
// written once and never updated, so entries only go stale when an operator
// deletes a mapping by hand; the TTL bounds that window.
type MappingCache struct {
	store   *otter.Cache[string, string]
	counter *stats.Counter
}

// NewMappingCache creates a cache holding up to maxSize entries for ttl.
// A non-positive maxSize or ttl disables caching and returns nil, which is a
// valid (always missing) cache.
func NewMappingCache(maxSize int, ttl time.Duration) *MappingCache {
	if maxSize <= 0 || ttl <= 0 {
		return nil
	}

	counter := stats.NewCounter()
	return &MappingCache{
		store: otter.Must(&otter.Options[string, string]{
			MaximumSize:      maxSize,
			ExpiryCalculator: otter.ExpiryWriting[string, string](ttl),
			StatsRecorder:    counter,
		}),
		counter: counter,
	}
}

// Get returns the cached schema for userID.
func (c *MappingCache) Get(userID string) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.store.GetIfPresent(userID)
}

// Set records the schema owned by userID.
func (c *MappingCache) Set(userID, schemaName string) {
	if c == nil {
		return
	}
	c.store.Set(userID, schemaName)
}

// HitRatio reports the fraction of lookups served from memory.
func (c *MappingCache) HitRatio() float64 {
	if c == nil {
		return 0
	}
	return c.counter.Snapshot().HitRatio()
}
