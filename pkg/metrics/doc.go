/*
Package metrics provides Prometheus metrics collection and exposition for Kodal.

All collectors live in the kodal_ namespace, registered against the
default registry at package init and served by Handler() (promhttp) on
/metrics.

# Metric Inventory

	kodal_http_requests_total{method,status}      counter
	kodal_http_request_duration_seconds{method}   histogram
	kodal_cache_hits_total                        gauge (mirrors cache stats)
	kodal_cache_misses_total                      gauge
	kodal_cache_evictions_total                   gauge
	kodal_cache_entries                           gauge
	kodal_cache_bytes                             gauge
	kodal_ratelimit_allowed_total                 gauge
	kodal_ratelimit_blocked_total                 gauge
	kodal_ratelimit_buckets                       gauge
	kodal_upstream_requests_total{outcome}        gauge
	kodal_upstream_success_rate                   gauge
	kodal_api_keys{state}                         gauge
	kodal_transforms_total                        counter

The HTTP counter and histogram are updated inline by the gateway's
instrumentation middleware; the component gauges are mirrored from the
components' own stats surfaces by the Collector every 15 seconds.
Mirrored gauges therefore reset together with ResetStats on the
component, which keeps the /metrics view and the /api/stats view
telling the same story.

# Usage

	collector := metrics.NewCollector(keys, store, limiter, client)
	collector.Start()
	defer collector.Stop()

	router.Handle("/metrics", metrics.Handler())

Request timing in a handler:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(
		metrics.HTTPRequestDuration.WithLabelValues(r.Method))
*/
package metrics
