package dhan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/cache"
	"github.com/dgnsrekt/maxpain-dashboard/internal/chain"
)

var nifty = Instrument{Name: "NIFTY", Scrip: 13, Segment: "IDX_I", SecurityID: 13, QuoteSegment: "IDX_I"}

func testClient(url string, retries int) *HTTPClient {
	logger, _ := zap.NewDevelopment()
	return NewClient(Config{
		BaseURL:         url,
		ClientID:        "1000000001",
		AccessToken:     "test-token",
		Timeout:         5 * time.Second,
		RetryCount:      retries,
		RetryDelay:      10 * time.Millisecond,
		BreakerFailures: 100,
	}, nil, logger)
}

func TestExpiryList_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/optionchain/expirylist" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("access-token"); got != "test-token" {
			t.Errorf("expected access-token header, got %q", got)
		}
		if got := r.Header.Get("client-id"); got != "1000000001" {
			t.Errorf("expected client-id header, got %q", got)
		}

		var body underlyingRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.UnderlyingScrip != 13 || body.UnderlyingSeg != "IDX_I" {
			t.Errorf("unexpected body %+v", body)
		}

		_, _ = io.WriteString(w, `{"status":"success","data":["2025-01-30","2025-02-06"]}`)
	}))
	defer server.Close()

	expiries, err := testClient(server.URL, 0).ExpiryList(context.Background(), nifty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(expiries) != 2 || expiries[0] != "2025-01-30" {
		t.Errorf("unexpected expiries %v", expiries)
	}
}

func TestExpiryList_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success","data":[]}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 0).ExpiryList(context.Background(), nifty)
	if !errors.Is(err, ErrNoExpiry) {
		t.Errorf("expected ErrNoExpiry, got %v", err)
	}
}

func TestOptionChain_ParsesStrikeKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body underlyingRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Expiry != "2025-01-30" {
			t.Errorf("expected expiry in body, got %q", body.Expiry)
		}
		_, _ = io.WriteString(w, `{"status":"success","data":{"last_price":24512.3,"oc":{
			"24550.000000":{"ce":{"last_price":80.5,"oi":1200,"volume":50,"implied_volatility":12.1,"greeks":{"delta":0.45,"gamma":0.0011,"theta":-9.1,"vega":12.3}}},
			"24450.000000":{"ce":{"last_price":130,"oi":900},"pe":{"last_price":60,"oi":2100,"greeks":{"delta":-0.4}}},
			"24500.000000":{"pe":{"last_price":95,"oi":3000}}
		}}}`)
	}))
	defer server.Close()

	c, err := testClient(server.URL, 0).OptionChain(context.Background(), nifty, "2025-01-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prices := c.Prices()
	if len(prices) != 3 || prices[0] != 24450 || prices[2] != 24550 {
		t.Fatalf("expected sorted numeric strikes, got %v", prices)
	}
	if c.Spot != 24512.3 {
		t.Errorf("expected spot from last_price, got %v", c.Spot)
	}

	s, ok := c.Find(24550)
	if !ok || s.Call == nil || s.Put != nil {
		t.Fatalf("expected call-only strike at 24550, got %+v", s)
	}
	if s.Call.Greeks.Gamma != 0.0011 || s.Call.IV != 12.1 {
		t.Errorf("greeks not decoded: %+v", s.Call)
	}
}

func TestOptionChain_BadStrikeKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success","data":{"oc":{"abc":{}}}}`)
	}))
	defer server.Close()

	if _, err := testClient(server.URL, 0).OptionChain(context.Background(), nifty, "x"); err == nil {
		t.Error("expected parse error for non-numeric strike key")
	}
}

func TestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/marketfeed/ohlc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string][]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		if ids := body["IDX_I"]; len(ids) != 1 || ids[0] != 13 {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = io.WriteString(w, `{"status":"success","data":{"IDX_I":{"13":{"last_price":24600,"ohlc":{"open":24400,"close":24000,"high":24650,"low":24390}}}}}`)
	}))
	defer server.Close()

	q, err := testClient(server.URL, 0).Quote(context.Background(), nifty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.LTP != 24600 || q.PrevClose != 24000 {
		t.Errorf("unexpected quote %+v", q)
	}
	pct, ok := q.PctChange()
	if !ok || pct != 2.5 {
		t.Errorf("expected 2.5%% change, got %v ok=%v", pct, ok)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthFailed},
		{"forbidden", http.StatusForbidden, ErrAuthFailed},
		{"not found", http.StatusNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := testClient(server.URL, 2).ExpiryList(context.Background(), nifty)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"failure","data":null}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 0).ExpiryList(context.Background(), nifty)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for failure status, got %v", err)
	}
}

func TestRateLimitedRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 2).ExpiryList(context.Background(), nifty)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}

	// Should have attempted 3 times (initial + 2 retries)
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestServerErrorRecovers(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"status":"success","data":["2025-01-30"]}`)
	}))
	defer server.Close()

	expiries, err := testClient(server.URL, 1).ExpiryList(context.Background(), nifty)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(expiries) != 1 {
		t.Errorf("unexpected expiries %v", expiries)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(Config{
		BaseURL:         server.URL,
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}, nil, logger)

	for i := 0; i < 2; i++ {
		if _, err := client.ExpiryList(context.Background(), nifty); err == nil {
			t.Fatal("expected server error")
		}
	}

	_, err := client.ExpiryList(context.Background(), nifty)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Errorf("expected open breaker to skip the request, got %d attempts", n)
	}
}

type countingClient struct {
	expiryCalls int
	chainCalls  int
}

func (c *countingClient) ExpiryList(ctx context.Context, inst Instrument) ([]string, error) {
	c.expiryCalls++
	return []string{"2025-01-30"}, nil
}

func (c *countingClient) OptionChain(ctx context.Context, inst Instrument, expiry string) (*chain.Chain, error) {
	c.chainCalls++
	return nil, ErrNotFound
}

func (c *countingClient) Quote(ctx context.Context, inst Instrument) (*Quote, error) {
	return &Quote{LTP: 1, PrevClose: 1}, nil
}

func TestCachedClientReusesResponses(t *testing.T) {
	logger := zap.NewNop()
	next := &countingClient{}
	c := NewCachedClient(next, cache.NewMemory(), DefaultTTLs, nil, logger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		expiries, err := c.ExpiryList(ctx, nifty)
		if err != nil || len(expiries) != 1 {
			t.Fatalf("unexpected result %v %v", expiries, err)
		}
	}
	if next.expiryCalls != 1 {
		t.Errorf("expected 1 upstream call, got %d", next.expiryCalls)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.OptionChain(ctx, nifty, "2025-01-30"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if next.chainCalls != 2 {
		t.Errorf("errors must not be cached, got %d upstream calls", next.chainCalls)
	}
}
