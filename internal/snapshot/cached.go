package snapshot

import (
	"context"
	"strings"
	"sync"
	"time"
)

type loaded struct {
	rows []Row
	at   time.Time
}

// CachedStore keeps loaded histories in memory for ttl. Appends through the
// store invalidate the symbol; writes from another process become visible
// once the entry expires.
type CachedStore struct {
	inner Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]loaded
}

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]loaded),
	}
}

func (c *CachedStore) Load(ctx context.Context, symbol string) ([]Row, error) {
	key := strings.ToUpper(symbol)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.at) < c.ttl {
		return e.rows, nil
	}

	rows, err := c.inner.Load(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = loaded{rows: rows, at: c.now()}
	c.mu.Unlock()
	return rows, nil
}

func (c *CachedStore) Append(ctx context.Context, symbol string, rows []Row) error {
	err := c.inner.Append(ctx, symbol, rows)
	c.Invalidate(symbol)
	return err
}

// Invalidate drops the cached history for symbol, or everything when symbol
// is empty.
func (c *CachedStore) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if symbol == "" {
		c.entries = make(map[string]loaded)
		return
	}
	delete(c.entries, strings.ToUpper(symbol))
}

func (c *CachedStore) Close() error {
	return c.inner.Close()
}

var (
	_ Store = (*CSVStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*CachedStore)(nil)
)
