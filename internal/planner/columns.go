package planner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const columnCacheTTL = 5 * time.Minute

// ColumnSource lists the live columns of the named tables.
type ColumnSource interface {
	ListColumns(ctx context.Context, tables []string) (map[string][]Column, error)
}

type columnCacheEntry struct {
	columns   map[string][]Column
	expiresAt time.Time
}

// columnCache holds live column lists. It carries schema only, never rows,
// so it is shared across tenants.
type columnCache struct {
	src    ColumnSource
	tables []string

	mu    sync.RWMutex
	entry *columnCacheEntry
	sf    singleflight.Group
	now   func() time.Time
}

func newColumnCache(src ColumnSource, tables []string) *columnCache {
	return &columnCache{src: src, tables: tables, now: time.Now}
}

func (c *columnCache) get() (map[string][]Column, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil || c.now().After(c.entry.expiresAt) {
		return nil, false
	}
	return c.entry.columns, true
}

func (c *columnCache) set(cols map[string][]Column) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &columnCacheEntry{columns: cols, expiresAt: c.now().Add(columnCacheTTL)}
}

// Columns returns the cached live columns, fetching once on a miss no
// matter how many callers arrive together. A failed fetch returns nil and
// is not cached.
func (c *columnCache) Columns(ctx context.Context) map[string][]Column {
	if cols, ok := c.get(); ok {
		return cols
	}

	v, _, _ := c.sf.Do("columns", func() (interface{}, error) {
		if cols, ok := c.get(); ok {
			return cols, nil
		}
		start := time.Now()
		cols, err := c.src.ListColumns(ctx, c.tables)
		if err != nil {
			log.Warn().Err(err).Msg("live column fetch failed, using catalog columns")
			return nil, nil
		}
		c.set(cols)
		log.Debug().
			Int("tables", len(cols)).
			Dur("elapsed", time.Since(start)).
			Msg("column cache refreshed")
		return cols, nil
	})

	cols, _ := v.(map[string][]Column)
	return cols
}

// merge overlays live column lists on catalog tables. Catalog descriptions
// survive for columns that still exist.
func merge(tables []Table, live map[string][]Column) []Table {
	if len(live) == 0 {
		return tables
	}
	out := make([]Table, len(tables))
	for i, t := range tables {
		cols, ok := live[t.Name]
		if !ok || len(cols) == 0 {
			out[i] = t
			continue
		}
		desc := make(map[string]string, len(t.Columns))
		for _, c := range t.Columns {
			desc[c.Name] = c.Description
		}
		merged := make([]Column, len(cols))
		for j, c := range cols {
			if c.Description == "" {
				c.Description = desc[c.Name]
			}
			merged[j] = c
		}
		t.Columns = merged
		out[i] = t
	}
	return out
}
