package health

import (
	"context"
	"fmt"

	"github.com/kodal/kodal/pkg/cache"
	"github.com/kodal/kodal/pkg/keyring"
	"github.com/kodal/kodal/pkg/ratelimit"
	"github.com/kodal/kodal/pkg/upstream"
)

// KeyringChecker reports on the API-key registry. No usable key means
// every upstream call will fail, so an empty registry is down, and a
// key approaching expiry degrades the service ahead of the outage.
type KeyringChecker struct {
	keys *keyring.Registry
}

func NewKeyringChecker(keys *keyring.Registry) *KeyringChecker {
	return &KeyringChecker{keys: keys}
}

func (c *KeyringChecker) Name() string { return "apiKeys" }

func (c *KeyringChecker) Check(_ context.Context, detailed bool) ComponentHealth {
	ch := ComponentHealth{Name: c.Name(), Status: StatusHealthy}
	if c.keys == nil {
		ch.Status = StatusDown
		ch.Message = "key registry not configured"
		return ch
	}

	s := c.keys.Stats()
	switch {
	case s.ActiveKeys == 0:
		ch.Status = StatusDown
		ch.Message = "no active API keys"
	case s.ExpiringSoon > 0:
		ch.Status = StatusDegraded
		ch.Message = fmt.Sprintf("%d key(s) expiring within 30 days", s.ExpiringSoon)
	}
	if detailed {
		ch.Details = s
	}
	return ch
}

// CacheChecker degrades when memory usage crosses the configured
// percentage of the byte cap.
type CacheChecker struct {
	cache     *cache.Cache
	threshold float64
}

func NewCacheChecker(store *cache.Cache, thresholds Thresholds) *CacheChecker {
	return &CacheChecker{
		cache:     store,
		threshold: thresholds.withDefaults().CacheMemoryPercent,
	}
}

func (c *CacheChecker) Name() string { return "cache" }

func (c *CacheChecker) Check(_ context.Context, detailed bool) ComponentHealth {
	ch := ComponentHealth{Name: c.Name(), Status: StatusHealthy}
	if c.cache == nil {
		ch.Status = StatusDown
		ch.Message = "cache not configured"
		return ch
	}

	usage := c.cache.MemoryUsage()
	if usage.Percentage > c.threshold {
		ch.Status = StatusDegraded
		ch.Message = fmt.Sprintf("memory usage %.1f%% above %.0f%%", usage.Percentage, c.threshold)
	}
	if detailed {
		ch.Details = c.cache.DetailedStats()
	}
	return ch
}

// LimiterChecker degrades when the block rate crosses the configured
// percentage, a sign that clients are being turned away in bulk.
type LimiterChecker struct {
	limiter   *ratelimit.Limiter
	threshold float64
}

func NewLimiterChecker(limiter *ratelimit.Limiter, thresholds Thresholds) *LimiterChecker {
	return &LimiterChecker{
		limiter:   limiter,
		threshold: thresholds.withDefaults().BlockRatePercent,
	}
}

func (c *LimiterChecker) Name() string { return "rateLimiter" }

func (c *LimiterChecker) Check(_ context.Context, detailed bool) ComponentHealth {
	ch := ComponentHealth{Name: c.Name(), Status: StatusHealthy}
	if c.limiter == nil {
		ch.Status = StatusDown
		ch.Message = "rate limiter not configured"
		return ch
	}

	s := c.limiter.Stats()
	if s.BlockRate > c.threshold {
		ch.Status = StatusDegraded
		ch.Message = fmt.Sprintf("block rate %.1f%% above %.0f%%", s.BlockRate, c.threshold)
	}
	if detailed {
		ch.Details = s
	}
	return ch
}

// UpstreamChecker degrades when the portal success rate falls below the
// configured percentage. An idle client is healthy; the rate only
// counts once traffic has flowed.
type UpstreamChecker struct {
	client    *upstream.Client
	threshold float64
}

func NewUpstreamChecker(client *upstream.Client, thresholds Thresholds) *UpstreamChecker {
	return &UpstreamChecker{
		client:    client,
		threshold: thresholds.withDefaults().SuccessRatePercent,
	}
}

func (c *UpstreamChecker) Name() string { return "upstream" }

func (c *UpstreamChecker) Check(_ context.Context, detailed bool) ComponentHealth {
	ch := ComponentHealth{Name: c.Name(), Status: StatusHealthy}
	if c.client == nil {
		ch.Status = StatusDown
		ch.Message = "upstream client not configured"
		return ch
	}

	s := c.client.Stats()
	if s.TotalRequests > 0 && s.SuccessRate < c.threshold {
		ch.Status = StatusDegraded
		ch.Message = fmt.Sprintf("success rate %.1f%% below %.0f%%", s.SuccessRate, c.threshold)
	}
	if detailed {
		ch.Details = s
	}
	return ch
}
