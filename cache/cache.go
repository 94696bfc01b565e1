// Package cache implements a content-addressed response cache keyed by a
// BLAKE3 fingerprint of the request's method, URL, and varying headers, with
// TTL expiry, an access-counter LRU approximation, and at-most-one
// concurrent build per fingerprint.
package cache

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"lukechampine.com/blake3"
)

// Entry is one cached response body plus the metadata needed to decide
// whether it's still fresh and which entry to evict next.
type Entry struct {
	Body       []byte
	Header     http.Header
	StatusCode int

	expiresAt time.Time
	hits      int64
}

// Cache is a process-wide (or per-Client, if constructed independently)
// response cache. The zero value is not usable; build one with New.
type Cache struct {
	maxEntries int

	mu      sync.Mutex
	entries map[string]*Entry
	group   singleflight.Group
}

// New builds a Cache that evicts down to maxEntries by lowest hit count once
// it grows beyond capacity. maxEntries <= 0 means unbounded.
func New(maxEntries int) *Cache {
	return &Cache{maxEntries: maxEntries, entries: make(map[string]*Entry)}
}

// Fingerprint computes the cache key for method+url+the values of vary
// headers, as BLAKE3(canonical "METHOD\nURL\nheader-values" bytes).
func Fingerprint(method, url string, header http.Header, varyHeaders []string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(url)
	sorted := append([]string(nil), varyHeaders...)
	sort.Strings(sorted)
	for _, h := range sorted {
		b.WriteByte('\n')
		b.WriteString(http.CanonicalHeaderKey(h))
		b.WriteByte(':')
		b.WriteString(header.Get(h))
	}
	sum := blake3.Sum256([]byte(b.String()))
	return string(sum[:])
}

// Get returns the cached entry for fingerprint if present and not expired.
func (c *Cache) Get(fingerprint string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, fingerprint)
		return nil, false
	}
	atomic.AddInt64(&e.hits, 1)
	return e, true
}

// GetOrBuild returns the cached entry for fingerprint, or calls build to
// produce one if absent/expired, storing the result with the given ttl.
// Concurrent calls for the same fingerprint share a single build via
// singleflight, so only one ever runs at a time.
func (c *Cache) GetOrBuild(fingerprint string, ttl time.Duration, build func() (*Entry, error)) (*Entry, error) {
	if e, ok := c.Get(fingerprint); ok {
		return e, nil
	}
	v, err, _ := c.group.Do(fingerprint, func() (any, error) {
		if e, ok := c.Get(fingerprint); ok {
			return e, nil
		}
		e, err := build()
		if err != nil {
			return nil, err
		}
		e.expiresAt = time.Now().Add(ttl)
		c.put(fingerprint, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

func (c *Cache) put(fingerprint string, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = e
	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictLocked()
	}
}

// evictLocked removes the entry with the lowest hit count. Called with
// c.mu held.
func (c *Cache) evictLocked() {
	var victim string
	var lowest int64 = -1
	for k, e := range c.entries {
		hits := atomic.LoadInt64(&e.hits)
		if lowest == -1 || hits < lowest {
			lowest = hits
			victim = k
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// Len reports how many entries are currently cached, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
