/*
Package ratelimit implements Kodal's token-bucket admission control.

Each (tier, identifier) pair owns one continuously refilling bucket. The
limiter never fails: every call yields a Decision the gateway turns into
either the request's X-RateLimit-* headers or a 429 with Retry-After.

# Tier Policy

	Tier           Capacity   Window
	anonymous           100      1 h
	authenticated     1,000      1 h
	premium          10,000      1 h

Refill rate is capacity/window, in tokens per millisecond. New buckets
start full. Identifiers are the client IP for anonymous traffic and the
keyring's non-secret surrogate for outbound admission — never raw
credential material.

# Decision Algorithm

 1. refill:  tokens = min(capacity, tokens + Δms × rate)
 2. allowed: tokens ≥ 1 → consume one,
    remaining = ⌊tokens⌋,
    reset     = ⌈(lastRefillMs + (capacity−tokens)/rate)/1000⌉
 3. denied:  remaining = 0,
    retryAfter = ⌈(1/rate)/1000⌉ seconds,
    violation appended, ratelimit.violation event published

Status answers the same question without consuming a token or recording
a violation.

# Violations

Denied decisions are retained for one hour and pruned lazily on access.
ViolationsFor("") returns the whole retained log; a non-empty identifier
filters it.

# Housekeeping

Start launches an hourly sweep that drops buckets whose last refill is at
least two windows old. A concurrent Check may resurrect a swept bucket;
it comes back full, which only restores idle capacity.

# Concurrency

One mutex guards the bucket map, the counters, and the violation log, so
refill-plus-consume is atomic per bucket and decisions are linearizable:
once a Check drains the last token, every later Check on the same bucket
sees tokens < 1 until refill produces another.

# Usage

	limiter := ratelimit.New(ratelimit.Options{
		Logger: log.WithComponent("ratelimit"),
		Broker: broker,
	})
	limiter.Start()
	defer limiter.Stop()

	d := limiter.Check(clientIP, ratelimit.TierAnonymous)
	if !d.Allowed {
		// emit 429 with Retry-After: d.RetryAfter
	}
*/
package ratelimit
