package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "chain/NIFTY", []byte("abc"), 30*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, ok, err := m.Get(ctx, "chain/NIFTY")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(val) != "abc" {
		t.Errorf("expected abc, got %s", val)
	}

	now = now.Add(30 * time.Second)
	if _, ok, _ := m.Get(ctx, "chain/NIFTY"); ok {
		t.Error("expected entry to expire at ttl")
	}
	if m.Len() != 0 {
		t.Errorf("expected expired entry to be dropped, len=%d", m.Len())
	}
}

func TestMemoryCopiesValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")
	_ = m.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'z'

	val, _, _ := m.Get(ctx, "k")
	if string(val) != "abc" {
		t.Errorf("cached value changed with caller buffer: %s", val)
	}
}

func TestMemoryZeroTTLNotStored(t *testing.T) {
	m := NewMemory()
	_ = m.Set(context.Background(), "k", []byte("v"), 0)
	if m.Len() != 0 {
		t.Error("zero ttl should not store")
	}
}

func TestMemoryPurge(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory()
	m.now = func() time.Time { return now }

	_ = m.Set(ctx, "short", []byte("1"), time.Second)
	_ = m.Set(ctx, "long", []byte("2"), time.Hour)
	now = now.Add(time.Minute)

	if n := m.Purge(); n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 remaining, got %d", m.Len())
	}
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	r := NewRedis(db, "maxpain")

	mock.ExpectSet("maxpain:expiries/NIFTY", []byte(`["2025-01-30"]`), 2*time.Minute).SetVal("OK")
	mock.ExpectGet("maxpain:expiries/NIFTY").SetVal(`["2025-01-30"]`)
	mock.ExpectGet("maxpain:missing").RedisNil()

	if err := r.Set(ctx, "expiries/NIFTY", []byte(`["2025-01-30"]`), 2*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, ok, err := r.Get(ctx, "expiries/NIFTY")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(val) != `["2025-01-30"]` {
		t.Errorf("unexpected value %s", val)
	}

	if _, ok, err := r.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisGetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRedis(db, "")
	mock.ExpectGet("k").SetErr(errors.New("connection refused"))

	if _, _, err := r.Get(context.Background(), "k"); err == nil {
		t.Error("expected error to propagate")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, _, err := New(context.Background(), Config{Backend: "memcached"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestKey(t *testing.T) {
	if got := Key("chain", "NIFTY", "2025-01-30"); got != "chain/NIFTY/2025-01-30" {
		t.Errorf("unexpected key %s", got)
	}
}
