/*
Package gateway is the HTTP surface over the wired components: the
coordinate engine, the portal client, the cache, the rate limiter, and
the health aggregator.

# Routing

	GET  /api/health                 aggregated health (?detailed=true)
	GET  /api/stats                  component stats snapshots
	GET  /metrics                    Prometheus exposition
	GET  /api/coordinate/transform   single-point conversion (anonymous tier)
	POST /api/coordinate/transform   batch conversion, up to 100 points
	                                 (authenticated tier)
	GET  /api/coordinate/systems     supported system inventory
	GET  /api/coordinate/detect      system autodetection for a point
	GET  /api/address                road-name address search

# Middleware

Requests flow through, in order: request-ID assignment, X-Forwarded-For
resolution, panic recovery, CORS, access logging with inline metrics,
and per-route rate limiting. Rate-limited routes always answer with
X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset;
denials add Retry-After and a RATE_LIMIT_EXCEEDED envelope.

# Envelope

Every response is the same shape:

	{
	  "success": true,
	  "data": { ... },
	  "error": null,
	  "metadata": {
	    "timestamp": "2026-01-01T00:00:00Z",
	    "cached": false,
	    "processingTime": 3
	  }
	}

Exactly one of data and error is non-null. Unmatched routes answer a
NOT_FOUND envelope; wrong methods answer VALIDATION_ERROR. In
production mode internal and unclassified errors are genericized
before they reach the wire.

Cacheable GET responses carry Cache-Control: public with the cache
type's TTL as max-age; everything else is no-cache, and health is
no-cache, no-store, must-revalidate.
*/
package gateway
