/*
Package health aggregates per-component health into a single service
report for the /api/health endpoint.

Each core component exposes a stats surface; a Checker turns that
snapshot into a ComponentHealth with one of three statuses:

	healthy   the component is operating normally
	degraded  the component works but a threshold has been crossed
	down      the component cannot serve at all

The Aggregator folds the worst component status into the service
status: a single down component takes the service down, a degraded
component degrades it.

# Component Rules

	apiKeys      down when no active key remains, degraded when any
	             key expires within 30 days
	cache        degraded above 90% memory usage
	rateLimiter  degraded above a 50% block rate
	upstream     degraded below a 70% success rate, once traffic
	             has flowed

The percentages are Thresholds fields and come from configuration;
the listed values are the defaults.

# Usage

	agg := health.NewAggregator(logger,
		health.NewKeyringChecker(keys),
		health.NewCacheChecker(store, thresholds),
		health.NewLimiterChecker(limiter, thresholds),
		health.NewUpstreamChecker(client, thresholds),
	)

	report := agg.Report(ctx, detailed)
	// report.Status drives the HTTP status: down → 503.
*/
package health
