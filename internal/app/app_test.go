package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/config"
	"github.com/dgnsrekt/maxpain-dashboard/internal/snapshot"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Dhan: config.DhanConfig{BaseURL: "http://127.0.0.1:0", ClientID: "1100", AccessToken: "token-abcd", Timeout: time.Second},
		Underlyings: []config.UnderlyingConfig{
			{Name: "NIFTY", Scrip: 13, Segment: "IDX_I", SecurityID: 13, QuoteSegment: "IDX_I", Yahoo: "^NSEI"},
			{Name: "BANKNIFTY", Scrip: 25, Segment: "IDX_I", SecurityID: 25, QuoteSegment: "IDX_I", Yahoo: "^NSEBANK"},
		},
		Storage:   config.StorageConfig{Backend: "csv", Directory: dir, SQLitePath: filepath.Join(dir, "h.db"), HistoryTTL: time.Second},
		Cache:     config.CacheConfig{Backend: "memory"},
		Dashboard: config.DashboardConfig{SpotSources: []string{"dhan", "yahoo"}, YahooURL: "http://127.0.0.1:0"},
	}
}

func TestOpen(t *testing.T) {
	rt, err := Open(context.Background(), testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()

	if rt.Client == nil || rt.Store == nil || rt.Metrics == nil {
		t.Fatal("expected wired runtime")
	}
	if _, ok := rt.CachedStore().(*snapshot.CachedStore); !ok {
		t.Error("expected cached store when history_ttl is set")
	}
	if rt.SpotSource().Name() != "fallback" {
		t.Error("expected fallback spot source")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "parquet"

	if _, err := Open(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}

func TestInstruments(t *testing.T) {
	rt := &Runtime{Config: testConfig(t)}

	all, err := rt.Instruments(nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected all underlyings, got %v %v", all, err)
	}

	picked, err := rt.Instruments([]string{"banknifty"})
	if err != nil {
		t.Fatalf("Instruments: %v", err)
	}
	if len(picked) != 1 || picked[0].Name != "BANKNIFTY" || picked[0].Scrip != 25 {
		t.Errorf("unexpected instruments %+v", picked)
	}

	if _, err := rt.Instruments([]string{"SENSEX"}); err == nil {
		t.Error("expected error for unconfigured underlying")
	}
}

func TestArchiveHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.ArchiveDirectory = filepath.Join(t.TempDir(), "archive")

	rt, err := Open(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()

	strike := 23000.0
	rows := []snapshot.Row{{Strike: strike, Expiry: "2025-01-30", Timestamp: "2025-01-20 09:30"}}
	if err := rt.Store.Append(context.Background(), "NIFTY", rows); err != nil {
		t.Fatalf("Append: %v", err)
	}

	path, err := rt.ArchiveHistory("NIFTY", "2025-01-20", true)
	if err != nil {
		t.Fatalf("ArchiveHistory: %v", err)
	}
	if filepath.Base(path) != "nifty-2025-01-20.csv.zst" {
		t.Errorf("unexpected archive name %s", path)
	}

	got, err := config.LatestArchiveDate(cfg.Storage.ArchiveDirectory, "NIFTY")
	if err != nil || got != "2025-01-20" {
		t.Errorf("expected archive to be discoverable, got %q %v", got, err)
	}

	archived, err := snapshot.ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(archived) != 1 || archived[0].Strike != strike {
		t.Errorf("unexpected archived rows %+v", archived)
	}
}

func TestArchiveHistoryNeedsCSV(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "sqlite"

	rt, err := Open(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()

	if _, err := rt.ArchiveHistory("NIFTY", "2025-01-20", false); err == nil {
		t.Error("expected error for sqlite backend")
	}
}
