package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kodal/kodal/pkg/events"
)

// Tier is an admission class with a fixed per-window budget.
type Tier string

const (
	TierAnonymous     Tier = "anonymous"
	TierAuthenticated Tier = "authenticated"
	TierPremium       Tier = "premium"
)

// tierPolicy maps each tier to its bucket capacity. Every tier shares the
// one-hour window.
var tierPolicy = map[Tier]float64{
	TierAnonymous:     100,
	TierAuthenticated: 1000,
	TierPremium:       10000,
}

// Window is the refill window shared by all tiers.
const Window = time.Hour

// ValidTier reports whether t belongs to the closed tier set.
func ValidTier(t Tier) bool {
	_, ok := tierPolicy[t]
	return ok
}

// Capacity returns the per-window budget for a tier. Unknown tiers get
// the anonymous budget.
func Capacity(t Tier) float64 {
	if c, ok := tierPolicy[t]; ok {
		return c
	}
	return tierPolicy[TierAnonymous]
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool  `json:"allowed"`
	Remaining  int64 `json:"remaining"`
	Limit      int64 `json:"limit"`
	Reset      int64 `json:"reset"`                // unix seconds until the bucket is full again
	RetryAfter int64 `json:"retryAfter,omitempty"` // seconds; set only when denied
}

// Violation records one denied admission.
type Violation struct {
	Identifier string    `json:"identifier"`
	Tier       Tier      `json:"tier"`
	Timestamp  time.Time `json:"timestamp"`
	Limit      int64     `json:"limit"`
}

// violationRetention is how long denied decisions stay queryable.
const violationRetention = time.Hour

// bucket is the refillable token reservoir for one (tier, identifier)
// pair. Tokens are real-valued; refill is continuous at capacity/window.
type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per millisecond
	lastRefill time.Time
}

// Stats summarizes limiter activity since the last reset.
type Stats struct {
	TotalRequests    int64   `json:"totalRequests"`
	Allowed          int64   `json:"allowed"`
	Blocked          int64   `json:"blocked"`
	Violations       int64   `json:"violations"`
	ActiveBuckets    int     `json:"activeBuckets"`
	RecentViolations int     `json:"recentViolations"`
	BlockRate        float64 `json:"blockRate"`
}

// Options configures a Limiter.
type Options struct {
	Logger zerolog.Logger
	Broker *events.Broker
}

// Limiter decides, per call, whether an identifier in a tier may proceed.
// It never fails: every call returns a Decision.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	violations []Violation
	logger     zerolog.Logger
	broker     *events.Broker

	total   int64
	allowed int64
	blocked int64

	stopCh   chan struct{}
	stopOnce sync.Once

	// now is swapped in tests to drive refill deterministically.
	now func() time.Time
}

// New creates a Limiter. Call Start to enable bucket housekeeping.
func New(opts Options) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		logger:  opts.Logger,
		broker:  opts.Broker,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
}

func bucketKey(tier Tier, identifier string) string {
	return string(tier) + ":" + identifier
}

// Check runs one admission decision, consuming a token when allowed. A
// denial appends a Violation and publishes a ratelimit.violation event.
func (l *Limiter) Check(identifier string, tier Tier) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refillLocked(identifier, tier)
	l.total++

	if b.tokens >= 1 {
		b.tokens--
		l.allowed++
		return l.decisionLocked(b, true)
	}

	l.blocked++
	d := l.decisionLocked(b, false)

	v := Violation{
		Identifier: identifier,
		Tier:       tier,
		Timestamp:  l.now(),
		Limit:      int64(b.capacity),
	}
	l.violations = append(l.violations, v)
	l.pruneViolationsLocked()

	l.logger.Warn().
		Str("identifier", identifier).
		Str("tier", string(tier)).
		Int64("limit", v.Limit).
		Int64("retry_after", d.RetryAfter).
		Msg("rate limit exceeded")
	l.broker.Publish(&events.Event{
		Type:    events.EventRateLimitViolation,
		Message: fmt.Sprintf("rate limit exceeded for %s (%s)", identifier, tier),
		Metadata: map[string]string{
			"identifier": identifier,
			"tier":       string(tier),
			"limit":      fmt.Sprintf("%d", v.Limit),
		},
	})

	return d
}

// Status reports the decision Check would make without consuming a token
// or recording a violation.
func (l *Limiter) Status(identifier string, tier Tier) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refillLocked(identifier, tier)
	return l.decisionLocked(b, b.tokens >= 1)
}

// refillLocked looks up or creates the bucket and applies continuous
// refill. Caller holds the lock.
func (l *Limiter) refillLocked(identifier string, tier Tier) *bucket {
	key := bucketKey(tier, identifier)
	now := l.now()

	b, ok := l.buckets[key]
	if !ok {
		capacity := Capacity(tier)
		b = &bucket{
			tokens:     capacity,
			capacity:   capacity,
			refillRate: capacity / float64(Window.Milliseconds()),
			lastRefill: now,
		}
		l.buckets[key] = b
		return b
	}

	elapsed := float64(now.Sub(b.lastRefill).Milliseconds())
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now
	return b
}

// decisionLocked builds a Decision from the bucket's post-refill state.
// Caller holds the lock.
func (l *Limiter) decisionLocked(b *bucket, allowed bool) Decision {
	// Instant at which the bucket refills completely, unix seconds.
	fullMs := float64(b.lastRefill.UnixMilli()) + (b.capacity-b.tokens)/b.refillRate
	d := Decision{
		Allowed: allowed,
		Limit:   int64(b.capacity),
		Reset:   int64(math.Ceil(fullMs / 1000)),
	}
	if allowed {
		d.Remaining = int64(math.Floor(b.tokens))
	} else {
		// Time until one token is available.
		d.RetryAfter = int64(math.Ceil((1 / b.refillRate) / 1000))
	}
	return d
}

// Reset refills one bucket by dropping it; the next Check starts full.
func (l *Limiter) Reset(identifier string, tier Tier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, bucketKey(tier, identifier))
}

// ResetAll drops every bucket.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

// Stats returns a consistent snapshot of the limiter's counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneViolationsLocked()

	rate := 0.0
	if l.total > 0 {
		rate = float64(l.blocked) / float64(l.total) * 100
	}
	return Stats{
		TotalRequests:    l.total,
		Allowed:          l.allowed,
		Blocked:          l.blocked,
		Violations:       l.blocked,
		ActiveBuckets:    len(l.buckets),
		RecentViolations: len(l.violations),
		BlockRate:        rate,
	}
}

// ViolationsFor returns retained violations, filtered by identifier when
// one is given.
func (l *Limiter) ViolationsFor(identifier string) []Violation {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneViolationsLocked()

	out := make([]Violation, 0, len(l.violations))
	for _, v := range l.violations {
		if identifier == "" || v.Identifier == identifier {
			out = append(out, v)
		}
	}
	return out
}

// ResetStats zeroes the counters and the violation log. Buckets keep
// their tokens.
func (l *Limiter) ResetStats() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total = 0
	l.allowed = 0
	l.blocked = 0
	l.violations = nil
}

// pruneViolationsLocked drops violations older than the retention
// window. Caller holds the lock.
func (l *Limiter) pruneViolationsLocked() {
	cutoff := l.now().Add(-violationRetention)
	keep := l.violations[:0]
	for _, v := range l.violations {
		if v.Timestamp.After(cutoff) {
			keep = append(keep, v)
		}
	}
	l.violations = keep
}

// Start launches hourly housekeeping that reclaims idle buckets.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop halts housekeeping. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Cleanup removes buckets whose last refill is at least two windows old.
// A concurrent Check can resurrect a bucket immediately afterwards; it
// starts full, which only reclaims idle capacity.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * Window)
	removed := 0
	for key, b := range l.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debug().Int("removed", removed).Msg("reclaimed idle rate-limit buckets")
	}
	return removed
}
