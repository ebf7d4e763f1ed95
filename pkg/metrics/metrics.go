package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP surface metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kodal_http_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kodal_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Cache metrics
	CacheHits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kodal_cache_hits_total",
			Help: "Cache hits since the last stats reset",
		},
	)

	CacheMisses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kodal_cache_misses_total",
			Help: "Cache misses since the last stats reset",
		},
	)

	CacheEvictions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kodal_cache_evictions_total",
			Help: "Cache evictions since the last stats reset",
		},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kodal_cache_entries",
			Help: "Current number of cache entries",
		},
	)

	CacheBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kodal_cache_bytes",
			Help: "Current serialized size of all cache entries in bytes",
		},
	)

	// Rate limiter metrics
	RateLimitAllowed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kodal_ratelimit_allowed_total",
			Help: "Admissions allowed since the last stats reset",
		},
	)

	RateLimitBlocked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kodal_ratelimit_blocked_total",
			Help: "Admissions blocked since the last stats reset",
		},
	)

	RateLimitBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kodal_ratelimit_buckets",
			Help: "Active token buckets",
		},
	)

	// Upstream client metrics
	UpstreamRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kodal_upstream_requests_total",
			Help: "Upstream requests by outcome since the last stats reset",
		},
		[]string{"outcome"},
	)

	UpstreamSuccessRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kodal_upstream_success_rate",
			Help: "Upstream success rate in percent",
		},
	)

	// Key registry metrics
	KeysTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kodal_api_keys",
			Help: "API keys by lifecycle state",
		},
		[]string{"state"},
	)

	// Coordinate engine metrics
	TransformsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kodal_transforms_total",
			Help: "Total number of coordinate transforms performed",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CacheEvictions)
	prometheus.MustRegister(CacheEntries)
	prometheus.MustRegister(CacheBytes)
	prometheus.MustRegister(RateLimitAllowed)
	prometheus.MustRegister(RateLimitBlocked)
	prometheus.MustRegister(RateLimitBuckets)
	prometheus.MustRegister(UpstreamRequests)
	prometheus.MustRegister(UpstreamSuccessRate)
	prometheus.MustRegister(KeysTotal)
	prometheus.MustRegister(TransformsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's duration for histogram observation
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds into a histogram
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
