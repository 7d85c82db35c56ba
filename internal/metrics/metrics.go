package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Market groups the collectors for listing refreshes, transactions, uploads
// and HTTP traffic.
type Market struct {
	refreshes     *prometheus.CounterVec
	refreshTime   prometheus.Histogram
	listings      *prometheus.GaugeVec
	transactions  *prometheus.CounterVec
	txLatency     *prometheus.HistogramVec
	uploads       *prometheus.CounterVec
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
	redemptions   *prometheus.CounterVec
	indexedHeight prometheus.Gauge
}

var (
	marketOnce sync.Once
	market     *Market
)

// Registry returns the process-wide collectors, registering them on first use.
func Registry() *Market {
	marketOnce.Do(func() {
		market = newMarket()
		prometheus.MustRegister(
			market.refreshes,
			market.refreshTime,
			market.listings,
			market.transactions,
			market.txLatency,
			market.uploads,
			market.requests,
			market.requestTime,
			market.redemptions,
			market.indexedHeight,
		)
	})
	return market
}

func newMarket() *Market {
	return &Market{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftmarket",
			Subsystem: "listings",
			Name:      "refresh_total",
			Help:      "Listing refreshes by outcome.",
		}, []string{"outcome"}),
		refreshTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nftmarket",
			Subsystem: "listings",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent scanning the marketplace contract.",
			Buckets:   prometheus.DefBuckets,
		}),
		listings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nftmarket",
			Subsystem: "listings",
			Name:      "snapshot_size",
			Help:      "Listings in the last committed snapshot.",
		}, []string{"state"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftmarket",
			Subsystem: "tx",
			Name:      "executed_total",
			Help:      "Contract transactions by action and outcome.",
		}, []string{"action", "outcome"}),
		txLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nftmarket",
			Subsystem: "tx",
			Name:      "confirm_duration_seconds",
			Help:      "Submit to receipt latency.",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		}, []string{"action"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftmarket",
			Subsystem: "ipfs",
			Name:      "uploads_total",
			Help:      "Pinning uploads by outcome.",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftmarket",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nftmarket",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"method", "route"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftmarket",
			Subsystem: "redemption",
			Name:      "transitions_total",
			Help:      "Redemption wizard transitions by resulting step.",
		}, []string{"step"}),
		indexedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nftmarket",
			Subsystem: "indexer",
			Name:      "listing_cursor",
			Help:      "Next listing index the indexer will read.",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveRefresh records one repository refresh.
func (m *Market) ObserveRefresh(err error, duration time.Duration, available, sold int) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome(err)).Inc()
	m.refreshTime.Observe(duration.Seconds())
	if err == nil {
		m.listings.WithLabelValues("available").Set(float64(available))
		m.listings.WithLabelValues("sold").Set(float64(sold))
	}
}

// ObserveTx records a transaction outcome. kind is the error class or "".
func (m *Market) ObserveTx(action, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	result := "confirmed"
	if kind != "" {
		result = kind
	}
	m.transactions.WithLabelValues(action, result).Inc()
	if duration > 0 {
		m.txLatency.WithLabelValues(action).Observe(duration.Seconds())
	}
}

func (m *Market) ObserveUpload(err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome(err)).Inc()
}

func (m *Market) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestTime.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Market) ObserveRedemptionStep(step string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(step).Inc()
}

func (m *Market) SetIndexerCursor(next uint64) {
	if m == nil {
		return
	}
	m.indexedHeight.Set(float64(next))
}
