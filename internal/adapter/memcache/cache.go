// Package memcache keeps recently decoded files in memory.
package memcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"sync"

	"github.com/couchcryptid/strong-motion-etl/internal/domain"
	"github.com/couchcryptid/strong-motion-etl/internal/observability"
	"github.com/couchcryptid/strong-motion-etl/internal/pipeline"
)

// CachedDecoder wraps a decoder with an in-memory LRU cache keyed by path,
// forced format, and a SHA-256 of the file's bytes, so a rewritten file is
// decoded again. It implements pipeline.Decoder.
type CachedDecoder struct {
	inner   pipeline.Decoder
	fsys    fs.FS
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedDecoder creates a cache decorator around a decoder reading from fsys.
func NewCachedDecoder(inner pipeline.Decoder, fsys fs.FS, maxEntries int, metrics *observability.Metrics) *CachedDecoder {
	return &CachedDecoder{
		inner:   inner,
		fsys:    fsys,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedDecoder) DecodeFile(ctx context.Context, ref domain.FileRef) (domain.Decoded, error) {
	key, ok := c.key(ref)
	if !ok {
		return c.inner.DecodeFile(ctx, ref)
	}
	if out, ok := c.cache.get(key); ok {
		c.metrics.DecodeCache.WithLabelValues("hit").Inc()
		return out, nil
	}
	c.metrics.DecodeCache.WithLabelValues("miss").Inc()

	out, err := c.inner.DecodeFile(ctx, ref)
	if err != nil {
		// Failures are not cached; the file may be complete on the next attempt.
		return out, err
	}
	c.cache.put(key, out)
	return out, nil
}

// Len reports the number of cached files.
func (c *CachedDecoder) Len() int {
	return c.cache.len()
}

// key hashes the file. Unreadable files bypass the cache and let the inner
// decoder report the error.
func (c *CachedDecoder) key(ref domain.FileRef) (string, bool) {
	name, err := pipeline.FSName(ref.Path)
	if err != nil {
		return "", false
	}
	data, err := fs.ReadFile(c.fsys, name)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return name + "|" + ref.Format + "|" + hex.EncodeToString(sum[:]), true
}

// lruCache is a simple thread-safe LRU cache of decoded files.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Decoded
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) get(key string) (domain.Decoded, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Decoded{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Decoded) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
