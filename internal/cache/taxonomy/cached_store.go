// Package taxonomy caches the taxonomy store. The remote sheet is slow and
// rate limited, so repeated loads within the TTL are answered from memory.
package taxonomy

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	taxonomyrepo "promptbuilder/internal/gateway/repository/taxonomy"
	model "promptbuilder/internal/taxonomy"
)

type Store = taxonomyrepo.Store

// The whole taxonomy is one value.
const cacheKey = "taxonomy"

type CacheConfig struct {
	TTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 2 * time.Minute}
}

type counter int

const (
	hits counter = iota
	misses
	originReads
	originWrites
	originReadErr
	originWriteErr
	invalidations
	numCounters
)

type MetricsSnapshot struct {
	Hits           uint64
	Misses         uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
	Invalidations  uint64
}

// CachedStore is read-through for Load and write-through for Save. A
// successful save replaces the cached copy so the next load skips the origin.
type CachedStore struct {
	origin   Store
	cache    *expirable.LRU[string, model.Data]
	counters [numCounters]atomic.Uint64
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	return &CachedStore{
		origin: origin,
		cache:  expirable.NewLRU[string, model.Data](1, nil, cfg.TTL),
	}
}

func (s *CachedStore) inc(c counter) { s.counters[c].Add(1) }

// Load returns a private copy; callers may mutate it freely.
func (s *CachedStore) Load(ctx context.Context) (model.Data, error) {
	if data, ok := s.cache.Get(cacheKey); ok {
		s.inc(hits)
		return data.Clone(), nil
	}
	s.inc(misses)
	s.inc(originReads)
	data, err := s.origin.Load(ctx)
	if err != nil {
		s.inc(originReadErr)
		return nil, err
	}
	s.cache.Add(cacheKey, data.Clone())
	return data, nil
}

// Save leaves the cache untouched when the origin rejects the write.
func (s *CachedStore) Save(ctx context.Context, items []model.Item) error {
	s.inc(originWrites)
	if err := s.origin.Save(ctx, items); err != nil {
		s.inc(originWriteErr)
		return err
	}
	s.cache.Add(cacheKey, model.Group(items).Clone())
	return nil
}

// Invalidate drops the cached copy, e.g. after the endpoint changed.
func (s *CachedStore) Invalidate() {
	if s == nil {
		return
	}
	s.inc(invalidations)
	s.cache.Purge()
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Hits:           s.counters[hits].Load(),
		Misses:         s.counters[misses].Load(),
		OriginReads:    s.counters[originReads].Load(),
		OriginWrites:   s.counters[originWrites].Load(),
		OriginReadErr:  s.counters[originReadErr].Load(),
		OriginWriteErr: s.counters[originWriteErr].Load(),
		Invalidations:  s.counters[invalidations].Load(),
	}
}
