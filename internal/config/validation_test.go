package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Dhan: DhanConfig{BaseURL: "https://api.dhan.co/v2", ClientID: "1100", AccessToken: "tok", RetryCount: 2},
		Underlyings: []UnderlyingConfig{
			{Name: "NIFTY", Scrip: 13, Segment: "IDX_I", SecurityID: 13, QuoteSegment: "IDX_I"},
		},
		Storage:   StorageConfig{Backend: "csv", Directory: "data"},
		Cache:     CacheConfig{Backend: "memory"},
		Collector: CollectorConfig{Workers: 1, Interval: 5 * time.Minute, Scale: 10000},
		Dashboard: DashboardConfig{
			LiveWindow: 20, CompareBelow: 25, CompareAbove: 26,
			Scale: 10000, CompareScale: 100, IVFactor: 1000,
			SpotSources: []string{"dhan", "yahoo"},
		},
		Market: MarketConfig{Calendar: "XNSE", Timezone: "Asia/Kolkata", Open: "09:15", Close: "15:30"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected no error for valid config, got: %v", err)
	}
}

func TestValidate_MissingToken(t *testing.T) {
	cfg := validConfig()
	cfg.Dhan.AccessToken = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing access token")
	}
	if !strings.Contains(err.Error(), "MAXPAIN_DHAN_ACCESS_TOKEN") {
		t.Errorf("error should name the env variable, got: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"storage backend", func(c *Config) { c.Storage.Backend = "parquet" }, "storage.backend"},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"live window", func(c *Config) { c.Dashboard.LiveWindow = 0 }, "dashboard.live_window"},
		{"compare window", func(c *Config) { c.Dashboard.CompareBelow, c.Dashboard.CompareAbove = 0, 0 }, "dashboard.compare_below"},
		{"scale", func(c *Config) { c.Collector.Scale = 0 }, "collector.scale"},
		{"spot source", func(c *Config) { c.Dashboard.SpotSources = []string{"bloomberg"} }, "dashboard.spot_sources"},
		{"duplicate underlying", func(c *Config) {
			c.Underlyings = append(c.Underlyings, UnderlyingConfig{Name: "nifty", Scrip: 13, Segment: "IDX_I"})
		}, "underlyings[1].name"},
		{"scrip", func(c *Config) { c.Underlyings[0].Scrip = 0 }, "underlyings[0].scrip"},
		{"session", func(c *Config) { c.Market.Close = "08:00" }, "market"},
		{"holiday", func(c *Config) { c.Market.Holidays = []string{"26/01/2025"} }, "market.holidays"},
		{"interval", func(c *Config) { c.Collector.Interval = time.Second }, "collector.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var verrs *ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			found := false
			for _, fe := range verrs.Invalid {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got: %v", tt.field, err)
			}
		})
	}
}

func TestValidate_NoUnderlyings(t *testing.T) {
	cfg := validConfig()
	cfg.Underlyings = nil

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "underlyings") {
		t.Errorf("expected missing underlyings error, got: %v", err)
	}
}

func TestValidate_NotifyNeedsTopic(t *testing.T) {
	cfg := validConfig()
	cfg.Notify.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Error("expected error when notifications are enabled without a topic")
	}
}

func TestValidationErrors_HasErrors(t *testing.T) {
	errs := &ValidationErrors{}
	if errs.HasErrors() {
		t.Error("expected HasErrors to be false for empty errors")
	}

	errs.missing("dhan.client_id")
	if !errs.HasErrors() {
		t.Error("expected HasErrors to be true after adding error")
	}
}
