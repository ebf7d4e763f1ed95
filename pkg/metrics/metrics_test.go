package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodal/kodal/pkg/cache"
	"github.com/kodal/kodal/pkg/keyring"
	"github.com/kodal/kodal/pkg/ratelimit"
)

func TestTimerMeasuresElapsed(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	d := timer.Duration()
	assert.GreaterOrEqual(t, d, 20*time.Millisecond)
	assert.Less(t, d, time.Second)
}

func TestTimerObserveDuration(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_timer_observe_seconds",
		Help: "test histogram",
	})

	timer := NewTimer()
	timer.ObserveDuration(h)
	// A second observation must not panic and keeps accumulating.
	timer.ObserveDuration(h)
}

func TestHandlerServesMetrics(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "200").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "kodal_http_requests_total")
}

func TestCollectorMirrorsComponentStats(t *testing.T) {
	keys, err := keyring.New(keyring.Options{
		Primary: "metricsKEY1234567890abcd",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	store := cache.New(cache.Options{Logger: zerolog.Nop()})
	require.NoError(t, store.Set(cache.TypeStatic, "k", "v"))
	store.Get(cache.TypeStatic, "k")
	store.Get(cache.TypeStatic, "miss")

	limiter := ratelimit.New(ratelimit.Options{Logger: zerolog.Nop()})
	limiter.Check("id", ratelimit.TierAnonymous)

	collector := NewCollector(keys, store, limiter, nil)
	collector.Collect()

	assert.Equal(t, 1.0, testutil.ToFloat64(CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(CacheEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(RateLimitAllowed))
	assert.Equal(t, 1.0, testutil.ToFloat64(RateLimitBuckets))
	assert.Equal(t, 1.0, testutil.ToFloat64(KeysTotal.WithLabelValues("active")))
}
