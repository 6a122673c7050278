// Package fetchcache memoizes record lookups for the lifetime of one request.
package fetchcache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/contentrest/internal/domain/record"
	"github.com/kailas-cloud/contentrest/internal/metrics"
)

// FetchFunc loads one record. found=false means the record is absent or
// excluded (e.g. by status) and is cached as a miss.
type FetchFunc func(ctx context.Context, typ, id string) (rec record.Record, found bool, err error)

type key struct {
	typ string
	id  string
}

type entry struct {
	rec   record.Record
	found bool
}

// Cache is a request-scoped (type, id) -> record memo. The fetch function
// runs at most once per key, including under concurrent lookups.
// Errors are returned to every waiter but not cached.
type Cache struct {
	fetch FetchFunc

	mu      sync.RWMutex
	entries map[key]entry
	group   singleflight.Group

	hits    int
	fetches int
}

// New creates an empty cache backed by fetch.
func New(fetch FetchFunc) *Cache {
	return &Cache{fetch: fetch, entries: make(map[key]entry)}
}

// GetOrFetch returns the cached record for (typ, id), loading it on first use.
func (c *Cache) GetOrFetch(ctx context.Context, typ, id string) (record.Record, bool, error) {
	k := key{typ: typ, id: id}
	if e, ok := c.lookup(k); ok {
		c.hit()
		return e.rec, e.found, nil
	}

	v, err, _ := c.group.Do(typ+"\x00"+id, func() (any, error) {
		if e, ok := c.lookup(k); ok {
			return e, nil
		}
		rec, found, err := c.fetch(ctx, typ, id)
		if err != nil {
			return nil, err
		}
		e := entry{rec: rec, found: found}
		c.mu.Lock()
		c.entries[k] = e
		c.fetches++
		c.mu.Unlock()
		metrics.FetchCacheTotal.WithLabelValues("miss").Inc()
		return e, nil
	})
	if err != nil {
		return record.Record{}, false, err
	}
	e := v.(entry)
	return e.rec, e.found, nil
}

// Prime stores records that were loaded by another query so that later
// lookups do not refetch them. Existing entries are kept.
func (c *Cache) Prime(recs ...record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range recs {
		k := key{typ: r.Type(), id: r.ID()}
		if _, ok := c.entries[k]; !ok {
			c.entries[k] = entry{rec: r, found: true}
		}
	}
}

// Fetches returns the number of fetch function invocations so far.
func (c *Cache) Fetches() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetches
}

// Hits returns the number of lookups answered from memory.
func (c *Cache) Hits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}

func (c *Cache) lookup(k key) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[k]
	return e, ok
}

func (c *Cache) hit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	metrics.FetchCacheTotal.WithLabelValues("hit").Inc()
}
