package dhan

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/cache"
	"github.com/dgnsrekt/maxpain-dashboard/internal/chain"
	"github.com/dgnsrekt/maxpain-dashboard/internal/metrics"
)

// TTLs sets how long each kind of response is reused.
type TTLs struct {
	Quote    time.Duration
	Expiries time.Duration
	Chain    time.Duration
}

// DefaultTTLs matches the refresh cadence of the live board.
var DefaultTTLs = TTLs{
	Quote:    5 * time.Second,
	Expiries: 120 * time.Second,
	Chain:    30 * time.Second,
}

// CachedClient serves repeated calls from a cache. Cache failures fall
// through to the wrapped client.
type CachedClient struct {
	next    Client
	cache   cache.Cache
	ttls    TTLs
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewCachedClient(next Client, c cache.Cache, ttls TTLs, m *metrics.Metrics, logger *zap.Logger) *CachedClient {
	return &CachedClient{next: next, cache: c, ttls: ttls, metrics: m, logger: logger}
}

func (c *CachedClient) ExpiryList(ctx context.Context, inst Instrument) ([]string, error) {
	key := cache.Key("expiries", strconv.Itoa(inst.Scrip), inst.Segment)
	return cached(ctx, c, "expiries", key, c.ttls.Expiries, func() ([]string, error) {
		return c.next.ExpiryList(ctx, inst)
	})
}

func (c *CachedClient) OptionChain(ctx context.Context, inst Instrument, expiry string) (*chain.Chain, error) {
	key := cache.Key("chain", strconv.Itoa(inst.Scrip), inst.Segment, expiry)
	return cached(ctx, c, "chain", key, c.ttls.Chain, func() (*chain.Chain, error) {
		return c.next.OptionChain(ctx, inst, expiry)
	})
}

func (c *CachedClient) Quote(ctx context.Context, inst Instrument) (*Quote, error) {
	key := cache.Key("quote", inst.QuoteSegment, strconv.Itoa(inst.SecurityID))
	return cached(ctx, c, "quote", key, c.ttls.Quote, func() (*Quote, error) {
		return c.next.Quote(ctx, inst)
	})
}

func cached[T any](ctx context.Context, c *CachedClient, kind, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.metrics.CacheLookup(kind, true)
			return v, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	}
	c.metrics.CacheLookup(kind, false)

	v, err := fetch()
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.cache.Set(ctx, key, raw, ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*CachedClient)(nil)
)
