// Package cache keeps introspected tables between analyses. The cache is
// owned by the caller; the analyzer only reads from and fills it.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tordrt/relschema/internal/schema"
)

// Key identifies one table of one connection at one schema version. Callers
// that can detect schema changes (a migration count, a checksum) put that in
// VersionHint; otherwise the TTL bounds staleness.
type Key struct {
	ConnectionID string
	Table        string
	VersionHint  string
}

// TableCache is a size-bounded LRU whose entries expire after a TTL
type TableCache struct {
	lru *expirable.LRU[Key, schema.Table]
}

// New creates a cache. size 0 means unbounded, ttl 0 means entries never expire.
func New(size int, ttl time.Duration) *TableCache {
	return &TableCache{lru: expirable.NewLRU[Key, schema.Table](size, nil, ttl)}
}

func (c *TableCache) Get(key Key) (schema.Table, bool) {
	return c.lru.Get(key)
}

func (c *TableCache) Add(key Key, table schema.Table) {
	c.lru.Add(key, table)
}

// Purge drops every entry, e.g. after running migrations
func (c *TableCache) Purge() {
	c.lru.Purge()
}

func (c *TableCache) Len() int {
	return c.lru.Len()
}
