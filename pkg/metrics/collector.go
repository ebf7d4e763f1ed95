package metrics

import (
	"time"

	"github.com/kodal/kodal/pkg/cache"
	"github.com/kodal/kodal/pkg/keyring"
	"github.com/kodal/kodal/pkg/ratelimit"
	"github.com/kodal/kodal/pkg/upstream"
)

// Collector mirrors component statistics into the Prometheus gauges on
// a fixed cadence.
type Collector struct {
	keys     *keyring.Registry
	cache    *cache.Cache
	limiter  *ratelimit.Limiter
	upstream *upstream.Client
	stopCh   chan struct{}
}

// NewCollector creates a collector over the core components. Any of
// them may be nil; the matching gauges simply stay unset.
func NewCollector(keys *keyring.Registry, c *cache.Cache, l *ratelimit.Limiter, u *upstream.Client) *Collector {
	return &Collector{
		keys:     keys,
		cache:    c,
		limiter:  l,
		upstream: u,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect takes one snapshot of every component's stats.
func (c *Collector) Collect() {
	c.collectKeyMetrics()
	c.collectCacheMetrics()
	c.collectRateLimitMetrics()
	c.collectUpstreamMetrics()
}

func (c *Collector) collectKeyMetrics() {
	if c.keys == nil {
		return
	}
	s := c.keys.Stats()
	KeysTotal.WithLabelValues("active").Set(float64(s.ActiveKeys))
	KeysTotal.WithLabelValues("expired").Set(float64(s.ExpiredKeys))
	KeysTotal.WithLabelValues("expiring_soon").Set(float64(s.ExpiringSoon))
}

func (c *Collector) collectCacheMetrics() {
	if c.cache == nil {
		return
	}
	s := c.cache.DetailedStats()
	CacheHits.Set(float64(s.Hits))
	CacheMisses.Set(float64(s.Misses))
	CacheEvictions.Set(float64(s.Evictions))
	CacheEntries.Set(float64(s.Size))
	CacheBytes.Set(float64(s.CalculatedSize))
}

func (c *Collector) collectRateLimitMetrics() {
	if c.limiter == nil {
		return
	}
	s := c.limiter.Stats()
	RateLimitAllowed.Set(float64(s.Allowed))
	RateLimitBlocked.Set(float64(s.Blocked))
	RateLimitBuckets.Set(float64(s.ActiveBuckets))
}

func (c *Collector) collectUpstreamMetrics() {
	if c.upstream == nil {
		return
	}
	s := c.upstream.Stats()
	UpstreamRequests.WithLabelValues("success").Set(float64(s.SuccessfulRequests))
	UpstreamRequests.WithLabelValues("failed").Set(float64(s.FailedRequests))
	UpstreamRequests.WithLabelValues("cached").Set(float64(s.CachedRequests))
	UpstreamRequests.WithLabelValues("rate_limited").Set(float64(s.RateLimitedRequests))
	UpstreamSuccessRate.Set(s.SuccessRate)
}
