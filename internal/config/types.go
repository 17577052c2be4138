package config

import (
	"strings"
	"time"

	"github.com/dgnsrekt/maxpain-dashboard/internal/cache"
	"github.com/dgnsrekt/maxpain-dashboard/internal/dhan"
	"github.com/dgnsrekt/maxpain-dashboard/internal/market"
	"github.com/dgnsrekt/maxpain-dashboard/internal/quote"
	"github.com/dgnsrekt/maxpain-dashboard/internal/snapshot"
)

// UnderlyingConfig describes one index and how each data source addresses it.
type UnderlyingConfig struct {
	Name         string `mapstructure:"name"`
	Scrip        int    `mapstructure:"scrip"`
	Segment      string `mapstructure:"segment"`
	SecurityID   int    `mapstructure:"security_id"`
	QuoteSegment string `mapstructure:"quote_segment"`
	Yahoo        string `mapstructure:"yahoo"`
}

// DefaultUnderlyings lists the indices tracked out of the box.
func DefaultUnderlyings() []map[string]any {
	return []map[string]any{
		{"name": "NIFTY", "scrip": 13, "segment": "IDX_I", "security_id": 13, "quote_segment": "IDX_I", "yahoo": "^NSEI"},
		{"name": "BANKNIFTY", "scrip": 25, "segment": "IDX_I", "security_id": 25, "quote_segment": "IDX_I", "yahoo": "^NSEBANK"},
	}
}

func (u UnderlyingConfig) Instrument() dhan.Instrument {
	return dhan.Instrument{
		Name:         strings.ToUpper(u.Name),
		Scrip:        u.Scrip,
		Segment:      u.Segment,
		SecurityID:   u.SecurityID,
		QuoteSegment: u.QuoteSegment,
	}
}

func (u UnderlyingConfig) Target() quote.Target {
	return quote.Target{Instrument: u.Instrument(), Yahoo: u.Yahoo}
}

// Underlying looks up a configured underlying by name, ignoring case.
func (c *Config) Underlying(name string) (UnderlyingConfig, bool) {
	for _, u := range c.Underlyings {
		if strings.EqualFold(u.Name, name) {
			return u, true
		}
	}
	return UnderlyingConfig{}, false
}

// UnderlyingNames returns the configured names in declaration order.
func (c *Config) UnderlyingNames() []string {
	out := make([]string, len(c.Underlyings))
	for i, u := range c.Underlyings {
		out[i] = strings.ToUpper(u.Name)
	}
	return out
}

func (d DhanConfig) Client() dhan.Config {
	return dhan.Config{
		BaseURL:         d.BaseURL,
		ClientID:        d.ClientID,
		AccessToken:     d.AccessToken,
		Timeout:         d.Timeout,
		RetryCount:      d.RetryCount,
		RetryDelay:      d.RetryDelay,
		RequestInterval: d.RequestInterval,
		BreakerFailures: d.BreakerFailures,
		BreakerTimeout:  d.BreakerTimeout,
	}
}

// Options converts the section for cache.New.
func (c CacheConfig) Options() cache.Config {
	return cache.Config{
		Backend:   cache.Backend(c.Backend),
		RedisAddr: c.RedisAddr,
		RedisDB:   c.RedisDB,
		Password:  c.RedisPassword,
		Prefix:    c.Prefix,
	}
}

func (c CacheConfig) TTLs() dhan.TTLs {
	return dhan.TTLs{Quote: c.QuoteTTL, Expiries: c.ExpiriesTTL, Chain: c.ChainTTL}
}

func (s StorageConfig) Store() snapshot.Config {
	return snapshot.Config{
		Backend:    snapshot.Backend(s.Backend),
		Directory:  s.Directory,
		SQLitePath: s.SQLitePath,
	}
}

// Location resolves the market timezone, falling back to UTC.
func (m MarketConfig) Location() *time.Location {
	return market.LoadLocation(m.Timezone)
}

// Session builds the trading session described by the market section.
func (m MarketConfig) Session() (*market.Session, error) {
	loc := m.Location()
	cal, err := market.NewCalendar(m.Calendar, m.Holidays, loc)
	if err != nil {
		return nil, err
	}
	return market.NewSession(cal, loc, m.Open, m.Close)
}
