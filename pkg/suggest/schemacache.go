// Package suggest turns a failed query's error message and a cached catalog
// snapshot into ranked, typed repair suggestions. Nothing here is
// authoritative about what exists in the warehouse; the cache only ranks
// candidates, and existence is always re-verified by the caller before a
// suggestion is executed.
package suggest

import (
	"strings"
	"time"

	"github.com/lakedict/lakedict/pkg/cache"
)

const (
	// DefaultSchemaTTL bounds how stale the ranking snapshot may get.
	DefaultSchemaTTL = 10 * time.Minute
	defaultSchemaMax = 512
)

// SchemaCache maps upper-cased table names to their column names with a
// freshness window per entry.
type SchemaCache struct {
	entries *cache.TTL[[]string]
}

func NewSchemaCache(ttl time.Duration, maxTables int) *SchemaCache {
	if ttl <= 0 {
		ttl = DefaultSchemaTTL
	}
	if maxTables <= 0 {
		maxTables = defaultSchemaMax
	}
	return &SchemaCache{entries: cache.NewTTL[[]string](ttl, maxTables)}
}

// Put records a table and its columns.
func (c *SchemaCache) Put(table string, columns []string) {
	c.entries.Set(strings.ToUpper(table), columns)
}

// Columns returns the cached column list for table.
func (c *SchemaCache) Columns(table string) ([]string, bool) {
	return c.entries.Get(strings.ToUpper(table))
}

// Has reports whether the table is in the snapshot.
func (c *SchemaCache) Has(table string) bool {
	_, ok := c.entries.Get(strings.ToUpper(table))
	return ok
}

// Tables lists every table currently in the snapshot.
func (c *SchemaCache) Tables() []string {
	return c.entries.Keys()
}
