package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSnapshot(t *testing.T) {
	m := New()
	m.RecordSnapshot("NIFTY", "ok", 41, 24500)
	m.RecordSnapshot("NIFTY", "no_chain", 0, 0)

	if got := testutil.ToFloat64(m.Snapshots.WithLabelValues("NIFTY", "ok")); got != 1 {
		t.Errorf("expected 1 ok snapshot, got %v", got)
	}
	if got := testutil.ToFloat64(m.SnapshotRows.WithLabelValues("NIFTY")); got != 41 {
		t.Errorf("expected 41 rows, got %v", got)
	}
	if got := testutil.ToFloat64(m.MaxPainStrike.WithLabelValues("NIFTY")); got != 24500 {
		t.Errorf("expected strike gauge 24500, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("optionchain", "ok", time.Second)
	m.CacheLookup("chain", true)
	m.RecordSnapshot("NIFTY", "ok", 1, 1)
	m.SetSpot("NIFTY", 1)
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.WSConnected()
	m.WSDisconnected()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveAPI("expirylist", "ok", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `maxpain_api_requests_total{endpoint="expirylist",outcome="ok"} 1`) {
		t.Errorf("expected api counter in output, got:\n%s", body)
	}
}
