// Package cache provides a bounded, expiring key/value cache with hit and miss
// accounting exported to Prometheus.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vasapolrittideah/movie-discovery-api/shared/metrics"
)

// Cacher is the read-through contract used by clients that cache upstream responses.
type Cacher[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Purge()
	Stats() Stats
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// HitRate returns hits / (hits + misses) as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// LRU is a size-bounded cache whose entries expire after a fixed TTL.
// Expired entries are treated as misses and are eventually swept in the background.
type LRU[V any] struct {
	name   string
	lru    *expirable.LRU[string, V]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewLRU creates a cache holding at most size entries, each living for ttl.
// A size of zero means unbounded.
func NewLRU[V any](name string, size int, ttl time.Duration) *LRU[V] {
	c := &LRU[V]{name: name}
	c.lru = expirable.NewLRU[string, V](size, func(string, V) {
		metrics.CacheEvictions.WithLabelValues(name).Inc()
	}, ttl)
	return c
}

func (c *LRU[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
		metrics.CacheHits.WithLabelValues(c.name).Inc()
	} else {
		c.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

func (c *LRU[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

func (c *LRU[V]) Delete(key string) {
	c.lru.Remove(key)
}

func (c *LRU[V]) Purge() {
	c.lru.Purge()
}

func (c *LRU[V]) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.lru.Len(),
	}
}
