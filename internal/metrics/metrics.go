// Package metrics holds the Prometheus collectors shared by the collector,
// the broker client and the dashboard server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "maxpain"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	APIRequests  *prometheus.CounterVec
	APILatency   *prometheus.HistogramVec
	CacheLookups *prometheus.CounterVec

	Snapshots     *prometheus.CounterVec
	SnapshotRows  *prometheus.CounterVec
	MaxPainStrike *prometheus.GaugeVec
	SpotPrice     *prometheus.GaugeVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	WSClients    prometheus.Gauge
}

// New builds the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Broker API requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		APILatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Broker API request latency including retries",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		Snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_total",
				Help:      "Collector snapshots by underlying and result",
			},
			[]string{"underlying", "result"},
		),
		SnapshotRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_rows_total",
				Help:      "Strike rows appended to history",
			},
			[]string{"underlying"},
		),
		MaxPainStrike: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "strike",
				Help:      "Latest max-pain strike per underlying",
			},
			[]string{"underlying"},
		),
		SpotPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "spot_price",
				Help:      "Latest index spot price per underlying",
			},
			[]string{"underlying"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Dashboard HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Dashboard HTTP handler latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_clients",
				Help:      "Connected WebSocket clients",
			},
		),
	}

	m.registry.MustRegister(
		m.APIRequests,
		m.APILatency,
		m.CacheLookups,
		m.Snapshots,
		m.SnapshotRows,
		m.MaxPainStrike,
		m.SpotPrice,
		m.HTTPRequests,
		m.HTTPDuration,
		m.WSClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(endpoint, outcome).Inc()
	m.APILatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordSnapshot counts one collector outcome. rows and strike are only
// recorded for successful snapshots.
func (m *Metrics) RecordSnapshot(underlying, result string, rows int, strike float64) {
	if m == nil {
		return
	}
	m.Snapshots.WithLabelValues(underlying, result).Inc()
	if result != "ok" {
		return
	}
	m.SnapshotRows.WithLabelValues(underlying).Add(float64(rows))
	m.MaxPainStrike.WithLabelValues(underlying).Set(strike)
}

func (m *Metrics) SetSpot(underlying string, price float64) {
	if m == nil || price <= 0 {
		return
	}
	m.SpotPrice.WithLabelValues(underlying).Set(price)
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) WSConnected() {
	if m != nil {
		m.WSClients.Inc()
	}
}

func (m *Metrics) WSDisconnected() {
	if m != nil {
		m.WSClients.Dec()
	}
}
