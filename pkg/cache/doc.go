/*
Package cache provides Kodal's bounded in-memory LRU cache.

Every cacheable artifact — portal responses, coordinate transforms,
address lookups — lives in one process-local cache keyed by
"{type}:{key}". Each type carries its own TTL; the cache as a whole is
bounded both by entry count and by the cumulative size of the serialized
values.

# Type Policy

	Type        TTL        Holds
	address     24 h       address search results
	building    24 h       building registry lookups
	coordinate  7 d        coordinate transform results
	realtime    5 min      live portal data
	static      30 d       reference data that rarely changes

# Bounds and Eviction

	entries ≤ 1,000
	bytes   ≤ 50 MiB (JSON-serialized value sizes)

Strict LRU over both bounds: a Set that would exceed either evicts from
the least recently used end until both hold again. Every eviction is
logged with the entry's key, size, and hit count. A value whose
serialization alone exceeds the byte cap is rejected with CACHE_ERROR
rather than admitted and immediately evicted.

# Expiration

Lazy only: an entry past its expiry is removed at observation time (Get,
Has, GetEntry, RemainingTTL) and reported as a miss. There is no janitor
goroutine — the LRU bounds keep the footprint finite, and the gateway's
traffic supplies the observations.

# Concurrency

A single mutex guards the map, the recency list, and the counters, so
get/set/delete appear atomic to each other and the bounds hold after
every committed operation. Get takes the write lock because a hit mutates
recency.

# Usage

	c := cache.New(cache.Options{Logger: log.WithComponent("cache")})

	if err := c.Set(cache.TypeCoordinate, key, result); err != nil {
		return err
	}
	if v, ok := c.Get(cache.TypeCoordinate, key); ok {
		return v.(*coord.Result), nil
	}

Stats() feeds the health checker (memory percentage) and the operator
stats endpoint; DetailedStats() adds mutation counters and byte
accounting; ResetStats() zeroes counters without touching entries.
*/
package cache
