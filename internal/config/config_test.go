package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("MAXPAIN_DHAN_ACCESS_TOKEN", "test-token-123")
	t.Setenv("MAXPAIN_DHAN_CLIENT_ID", "1100")
}

func TestLoadWithCredentials(t *testing.T) {
	setCredentials(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected config to load with credentials, got error: %v", err)
	}

	if cfg.Dhan.AccessToken != "test-token-123" {
		t.Errorf("expected access token 'test-token-123', got '%s'", cfg.Dhan.AccessToken)
	}
	if cfg.Dhan.BaseURL != "https://api.dhan.co/v2" {
		t.Errorf("expected default base URL, got '%s'", cfg.Dhan.BaseURL)
	}
	if cfg.Dashboard.RefreshInterval != 30*time.Second {
		t.Errorf("expected 30s refresh, got %s", cfg.Dashboard.RefreshInterval)
	}
	if cfg.Dashboard.CompareBelow != 25 || cfg.Dashboard.CompareAbove != 26 {
		t.Errorf("expected 25/26 compare window, got %d/%d", cfg.Dashboard.CompareBelow, cfg.Dashboard.CompareAbove)
	}
	if cfg.Cache.ExpiriesTTL != 120*time.Second {
		t.Errorf("expected 120s expiries TTL, got %s", cfg.Cache.ExpiriesTTL)
	}
	if got := cfg.UnderlyingNames(); len(got) != 2 || got[0] != "NIFTY" || got[1] != "BANKNIFTY" {
		t.Errorf("expected default underlyings, got %v", got)
	}
}

func TestLoadWithoutCredentials(t *testing.T) {
	t.Setenv("MAXPAIN_DHAN_ACCESS_TOKEN", "")
	t.Setenv("MAXPAIN_DHAN_CLIENT_ID", "")
	t.Setenv("DHAN_ACCESS_TOKEN", "")
	t.Setenv("DHAN_CLIENT_ID", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error when credentials are missing")
	}
}

func TestLoadFromFile(t *testing.T) {
	setCredentials(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
underlyings:
  - name: finnifty
    scrip: 27
    segment: IDX_I
    security_id: 27
    quote_segment: IDX_I
storage:
  backend: sqlite
  sqlite_path: /tmp/history.db
dashboard:
  live_window: 10
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	u, ok := cfg.Underlying("FINNIFTY")
	if !ok {
		t.Fatalf("expected FINNIFTY underlying, got %+v", cfg.Underlyings)
	}
	if inst := u.Instrument(); inst.Name != "FINNIFTY" || inst.Scrip != 27 {
		t.Errorf("unexpected instrument %+v", inst)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Dashboard.LiveWindow != 10 {
		t.Errorf("expected live window 10, got %d", cfg.Dashboard.LiveWindow)
	}
	// Untouched keys keep their defaults
	if cfg.Dashboard.CompareAbove != 26 {
		t.Errorf("expected default compare_above, got %d", cfg.Dashboard.CompareAbove)
	}
}

func TestEnvOverridesNestedKey(t *testing.T) {
	setCredentials(t)
	t.Setenv("MAXPAIN_CACHE_BACKEND", "redis")
	t.Setenv("MAXPAIN_CACHE_REDIS_ADDR", "cache:6380")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "cache:6380" {
		t.Errorf("expected env override, got %+v", cfg.Cache)
	}
}

func TestDashboardAddr(t *testing.T) {
	if got := (DashboardConfig{Port: "8080"}).Addr(); got != ":8080" {
		t.Errorf("expected :8080, got %s", got)
	}
	if got := (DashboardConfig{Port: "127.0.0.1:9000"}).Addr(); got != "127.0.0.1:9000" {
		t.Errorf("expected host:port to pass through, got %s", got)
	}
}

func TestLatestArchiveDate(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"nifty-2025-01-20.csv.zst",
		"nifty-2025-01-22.csv.zst",
		"banknifty-2025-01-23.csv.zst",
		"nifty-notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	// Empty archive is ignored
	if err := os.WriteFile(filepath.Join(dir, "nifty-2025-01-24.csv.zst"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	got, err := LatestArchiveDate(dir, "NIFTY")
	if err != nil {
		t.Fatalf("LatestArchiveDate: %v", err)
	}
	if got != "2025-01-22" {
		t.Errorf("expected 2025-01-22, got %s", got)
	}

	if _, err := LatestArchiveDate(dir, "FINNIFTY"); err == nil {
		t.Error("expected error when no archives match")
	}
	if p := ArchivePath(dir, "NIFTY", got); filepath.Base(p) != "nifty-2025-01-22.csv.zst" {
		t.Errorf("unexpected archive path %s", p)
	}
}
