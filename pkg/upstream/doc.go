/*
Package upstream dispatches requests to the Korean public-data portals.

The client owns everything between a handler's intent and the portal's
answer: credential injection, outbound admission, bounded retries with
classification, an optional circuit breaker, and a caching adapter.

# Request Pipeline

 1. acquire the provider's secret from the keyring
 2. admission at tier authenticated, identified by the keyring's
    non-secret surrogate (denied → RATE_LIMIT_EXCEEDED)
 3. sanitized request log — serviceKey is masked before it can reach
    a sink
 4. send with a per-attempt deadline (default 30 s)
 5. retry on network errors, 429, and 5xx; delay before attempt i is
    i × RetryDelay (linear; the curve is a knob, the guarantee is
    monotonic non-decrease); other 4xx short-circuit
 6. classify: 429 → RATE_LIMIT_EXCEEDED, 5xx → EXTERNAL_API_ERROR
    (retryable), other 4xx → EXTERNAL_API_ERROR (final), connection
    failures → EXTERNAL_API_ERROR, deadline → TIMEOUT_ERROR

Response bodies are read through a 10 MiB limit reader and always
drained, so the connection returns to the pool on every outcome.

# Circuit Breaker

With EnableBreaker the exchange runs inside a sony/gobreaker breaker
that trips after five consecutive failures. An open breaker
short-circuits to SERVICE_UNAVAILABLE (retryable) without touching the
network, and every state change is logged and published as an
upstream.breaker.* event.

# Caching Adapter

GetCached keys entries as "{endpoint}?{k1=v1&k2=v2…}" with parameters
sorted lexicographically (bare endpoint when there are none). Hits come
back with Cached=true; misses go to the network and are stored only on
success. InvalidateCache clears one type or everything and publishes
cache.cleared.

# Statistics

Total, successful, failed, cached, and rate-limited request counters
plus derived cacheHitRate and successRate feed the health checker (the
client reports degraded below 70% success) and the operator stats
endpoint.

# Usage

	client := upstream.New(upstream.Config{
		Provider:        "address",
		EnableCache:     true,
		EnableRateLimit: true,
		EnableBreaker:   true,
	}, upstream.Deps{
		Keys:    keys,
		Limiter: limiter,
		Cache:   store,
		Logger:  log.WithComponent("upstream"),
		Broker:  broker,
	})

	resp, err := client.GetCached(ctx, cache.TypeAddress,
		"/1611000/nsdi/eios/ladfrl/ladfrlList.json",
		map[string]string{"keyword": keyword})
*/
package upstream
