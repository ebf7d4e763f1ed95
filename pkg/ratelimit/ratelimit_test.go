package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives refill deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	l := New(Options{Logger: zerolog.Nop()})
	l.now = clock.Now
	return l, clock
}

func TestTierPolicy(t *testing.T) {
	tests := []struct {
		tier     Tier
		capacity float64
	}{
		{TierAnonymous, 100},
		{TierAuthenticated, 1000},
		{TierPremium, 10000},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.True(t, ValidTier(tt.tier))
			assert.Equal(t, tt.capacity, Capacity(tt.tier))
		})
	}
	assert.False(t, ValidTier(Tier("vip")))
}

func TestNewBucketStartsFull(t *testing.T) {
	l, _ := newTestLimiter()

	d := l.Check("client-1", TierAnonymous)
	require.True(t, d.Allowed)
	assert.Equal(t, int64(99), d.Remaining)
	assert.Equal(t, int64(100), d.Limit)
	assert.Zero(t, d.RetryAfter)
}

func TestBucketExhaustion(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 100; i++ {
		d := l.Check("client-1", TierAnonymous)
		require.True(t, d.Allowed, "request %d should be allowed", i+1)
	}

	d := l.Check("client-1", TierAnonymous)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Positive(t, d.RetryAfter)
	assert.Positive(t, d.Reset)
}

func TestDenialPersistsUntilRefill(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < 100; i++ {
		l.Check("client-1", TierAnonymous)
	}
	d := l.Check("client-1", TierAnonymous)
	require.False(t, d.Allowed)

	// One token takes window/capacity = 36 s to refill; before that every
	// check on the same bucket stays denied.
	clock.Advance(time.Duration(d.RetryAfter)*time.Second - time.Second)
	d = l.Check("client-1", TierAnonymous)
	assert.False(t, d.Allowed)

	clock.Advance(2 * time.Second)
	d = l.Check("client-1", TierAnonymous)
	assert.True(t, d.Allowed)
}

func TestContinuousRefillCapped(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < 100; i++ {
		l.Check("client-1", TierAnonymous)
	}

	// Two full windows of idleness refill to capacity, not beyond.
	clock.Advance(2 * Window)
	d := l.Check("client-1", TierAnonymous)
	require.True(t, d.Allowed)
	assert.Equal(t, int64(99), d.Remaining)
}

func TestBucketsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 100; i++ {
		l.Check("client-1", TierAnonymous)
	}
	require.False(t, l.Check("client-1", TierAnonymous).Allowed)

	// Same identifier, different tier: separate bucket.
	assert.True(t, l.Check("client-1", TierAuthenticated).Allowed)
	// Different identifier, same tier.
	assert.True(t, l.Check("client-2", TierAnonymous).Allowed)
}

func TestStatusDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		s := l.Status("client-1", TierAnonymous)
		require.True(t, s.Allowed)
		assert.Equal(t, int64(100), s.Remaining)
	}

	stats := l.Stats()
	assert.Zero(t, stats.TotalRequests)
	assert.Zero(t, stats.RecentViolations)
}

func TestViolationLogAndRetention(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < 101; i++ {
		l.Check("client-1", TierAnonymous)
	}
	l.Check("client-2", TierAnonymous) // allowed; no violation

	vs := l.ViolationsFor("client-1")
	require.Len(t, vs, 1)
	assert.Equal(t, TierAnonymous, vs[0].Tier)
	assert.Equal(t, int64(100), vs[0].Limit)

	assert.Len(t, l.ViolationsFor(""), 1)
	assert.Empty(t, l.ViolationsFor("client-2"))

	// Retention is one hour.
	clock.Advance(61 * time.Minute)
	assert.Empty(t, l.ViolationsFor(""))
}

func TestStats(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 101; i++ {
		l.Check("client-1", TierAnonymous)
	}

	stats := l.Stats()
	assert.Equal(t, int64(101), stats.TotalRequests)
	assert.Equal(t, int64(100), stats.Allowed)
	assert.Equal(t, int64(1), stats.Blocked)
	assert.Equal(t, 1, stats.ActiveBuckets)
	assert.Equal(t, 1, stats.RecentViolations)
	// One denial out of 101 checks.
	assert.InDelta(t, 1.0/101.0*100, stats.BlockRate, 0.01)
}

func TestStatsZeroWhenIdle(t *testing.T) {
	l, _ := newTestLimiter()
	assert.Zero(t, l.Stats().BlockRate)
}

func TestResetStats(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 101; i++ {
		l.Check("client-1", TierAnonymous)
	}
	l.ResetStats()

	stats := l.Stats()
	assert.Zero(t, stats.TotalRequests)
	assert.Zero(t, stats.Allowed)
	assert.Zero(t, stats.Blocked)
	assert.Zero(t, stats.RecentViolations)
	// Buckets keep their state across a stats reset.
	assert.Equal(t, 1, stats.ActiveBuckets)
}

func TestResetRefillsBucket(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 101; i++ {
		l.Check("client-1", TierAnonymous)
	}
	require.False(t, l.Status("client-1", TierAnonymous).Allowed)

	l.Reset("client-1", TierAnonymous)

	d := l.Check("client-1", TierAnonymous)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(99), d.Remaining)
}

func TestResetAll(t *testing.T) {
	l, _ := newTestLimiter()

	l.Check("a", TierAnonymous)
	l.Check("b", TierAuthenticated)
	require.Equal(t, 2, l.Stats().ActiveBuckets)

	l.ResetAll()
	assert.Zero(t, l.Stats().ActiveBuckets)
}

func TestCleanupReclaimsIdleBuckets(t *testing.T) {
	l, clock := newTestLimiter()

	l.Check("idle", TierAnonymous)
	clock.Advance(Window + time.Minute)
	l.Check("busy", TierAnonymous)

	// idle is now ~1 h old: inside the 2× window, kept.
	assert.Zero(t, l.Cleanup())

	clock.Advance(Window + time.Minute)
	// idle is past 2× window, busy is not.
	assert.Equal(t, 1, l.Cleanup())
	assert.Equal(t, 1, l.Stats().ActiveBuckets)
}

func TestConservationUnderConcurrency(t *testing.T) {
	l, _ := newTestLimiter()

	var allowed int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := int64(0)
			for i := 0; i < 30; i++ {
				if l.Check("shared", TierAnonymous).Allowed {
					local++
				}
			}
			mu.Lock()
			allowed += local
			mu.Unlock()
		}()
	}
	wg.Wait()

	// No refill happens with a frozen clock: exactly the capacity passes.
	assert.Equal(t, int64(100), allowed)
}

func TestRetryAfterMatchesRefillRate(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 100; i++ {
		l.Check("client-1", TierAnonymous)
	}
	d := l.Check("client-1", TierAnonymous)
	require.False(t, d.Allowed)

	// window/capacity = 3600 s / 100 tokens = 36 s per token.
	assert.Equal(t, int64(36), d.RetryAfter)
}

func TestDecisionLimits(t *testing.T) {
	l, _ := newTestLimiter()

	tests := []struct {
		tier  Tier
		limit int64
	}{
		{TierAnonymous, 100},
		{TierAuthenticated, 1000},
		{TierPremium, 10000},
	}
	for _, tt := range tests {
		d := l.Check(fmt.Sprintf("id-%s", tt.tier), tt.tier)
		assert.Equal(t, tt.limit, d.Limit)
	}
}
