package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key identifies a load by content hash, extension and options. Two uploads of the same
// bytes share a key regardless of when they arrive.
func Key(name string, content []byte, opt Options) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%s|%s|%q|%s|%d|%d",
		hex.EncodeToString(sum[:]), strings.ToLower(filepath.Ext(name)),
		opt.Delimiter, opt.SheetName, opt.SheetIndex, opt.MaxRows)
}

// Cache memoizes loads by Key. Concurrent loads of the same key run once. Cached tables
// are shared and must be treated as read-only.
type Cache struct {
	mu      sync.Mutex
	limit   int
	entries map[string]*RawTable
	order   []string
	group   singleflight.Group
	hits    int
	misses  int
}

// NewCache keeps at most limit tables, evicting the oldest first. limit <= 0 means 16.
func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = 16
	}
	return &Cache{limit: limit, entries: map[string]*RawTable{}}
}

// Load returns the cached table for this content or loads and stores it.
func (c *Cache) Load(name string, content []byte, opt Options) (*RawTable, bool, error) {
	key := Key(name, content, opt)
	c.mu.Lock()
	if t, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return t, true, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		t, err := Load(name, content, opt)
		if err != nil {
			return nil, err
		}
		c.put(key, t)
		return t, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*RawTable), false, nil
}

func (c *Cache) put(key string, t *RawTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	c.entries[key] = t
	c.order = append(c.order, key)
	for len(c.order) > c.limit {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

// Stats reports cache hits, misses and current size.
func (c *Cache) Stats() (hits, misses, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}
