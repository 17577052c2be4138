package config

import (
	"fmt"
	"strings"
	"time"
)

// FieldError represents a single invalid setting.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	Missing []string
	Invalid []FieldError
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Invalid) > 0
}

func (e *ValidationErrors) missing(field string) {
	e.Missing = append(e.Missing, field)
}

func (e *ValidationErrors) invalid(field, format string, args ...any) {
	e.Invalid = append(e.Invalid, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.Missing) > 0 {
		sb.WriteString("\nMissing settings:\n")
		for _, m := range e.Missing {
			sb.WriteString(fmt.Sprintf("  - %s (env MAXPAIN_%s)\n", m, envName(m)))
		}
	}

	if len(e.Invalid) > 0 {
		sb.WriteString("\nInvalid settings:\n")
		for _, fe := range e.Invalid {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", fe.Field, fe.Message))
		}
	}

	return sb.String()
}

func envName(field string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(field))
}

// Validate checks credentials, backends and window sizes.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if c.Dhan.AccessToken == "" {
		errs.missing("dhan.access_token")
	}
	if c.Dhan.ClientID == "" {
		errs.missing("dhan.client_id")
	}
	if c.Dhan.BaseURL == "" {
		errs.missing("dhan.base_url")
	}
	if c.Dhan.RetryCount < 0 {
		errs.invalid("dhan.retry_count", "must not be negative, got %d", c.Dhan.RetryCount)
	}

	validateUnderlyings(errs, c.Underlyings)

	switch c.Storage.Backend {
	case "csv":
		if c.Storage.Directory == "" {
			errs.missing("storage.directory")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs.missing("storage.sqlite_path")
		}
	default:
		errs.invalid("storage.backend", "%q is not one of csv, sqlite", c.Storage.Backend)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs.missing("cache.redis_addr")
		}
	default:
		errs.invalid("cache.backend", "%q is not one of memory, redis", c.Cache.Backend)
	}

	if c.Collector.Workers < 1 {
		errs.invalid("collector.workers", "must be at least 1, got %d", c.Collector.Workers)
	}
	if c.Collector.Interval < time.Minute {
		errs.invalid("collector.interval", "must be at least 1m, got %s", c.Collector.Interval)
	}
	positive(errs, "collector.scale", c.Collector.Scale)

	d := c.Dashboard
	if d.LiveWindow < 1 {
		errs.invalid("dashboard.live_window", "must be at least 1, got %d", d.LiveWindow)
	}
	if d.CompareBelow < 0 || d.CompareAbove < 0 || d.CompareBelow+d.CompareAbove == 0 {
		errs.invalid("dashboard.compare_below", "compare window %d/%d selects no strikes", d.CompareBelow, d.CompareAbove)
	}
	positive(errs, "dashboard.scale", d.Scale)
	positive(errs, "dashboard.compare_scale", d.CompareScale)
	positive(errs, "dashboard.iv_factor", d.IVFactor)
	for _, src := range d.SpotSources {
		if src != "dhan" && src != "yahoo" {
			errs.invalid("dashboard.spot_sources", "unknown source %q", src)
		}
	}

	if _, err := c.Market.Session(); err != nil {
		errs.invalid("market", "%v", err)
	}
	for _, h := range c.Market.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			errs.invalid("market.holidays", "%q is not YYYY-MM-DD", h)
		}
	}

	if c.Notify.Enabled && c.Notify.Topic == "" {
		errs.missing("notify.topic")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateUnderlyings(errs *ValidationErrors, us []UnderlyingConfig) {
	if len(us) == 0 {
		errs.missing("underlyings")
		return
	}
	seen := make(map[string]bool, len(us))
	for i, u := range us {
		field := fmt.Sprintf("underlyings[%d]", i)
		name := strings.ToUpper(u.Name)
		if name == "" {
			errs.missing(field + ".name")
			continue
		}
		if seen[name] {
			errs.invalid(field+".name", "duplicate underlying %s", name)
		}
		seen[name] = true
		if u.Scrip <= 0 {
			errs.invalid(field+".scrip", "%s needs a positive scrip id", name)
		}
		if u.Segment == "" {
			errs.missing(field + ".segment")
		}
	}
}

func positive(errs *ValidationErrors, field string, v float64) {
	if v <= 0 {
		errs.invalid(field, "must be positive, got %g", v)
	}
}
