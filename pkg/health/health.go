package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Status is a component or service health state.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// rank orders statuses for aggregation. Higher is worse.
func (s Status) rank() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Worse returns the more severe of the two statuses.
func (s Status) Worse(other Status) Status {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// ComponentHealth is one component's contribution to the service report.
type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Checker reports the health of a single component.
type Checker interface {
	// Name identifies the component in the aggregated report.
	Name() string

	// Check evaluates the component. Detailed checks attach the
	// component's stats snapshot as Details.
	Check(ctx context.Context, detailed bool) ComponentHealth
}

// Thresholds are the tipping points for the component checkers.
// Zero values fall back to the defaults.
type Thresholds struct {
	// CacheMemoryPercent degrades the cache above this memory usage.
	CacheMemoryPercent float64

	// BlockRatePercent degrades the rate limiter above this block rate.
	BlockRatePercent float64

	// SuccessRatePercent degrades the upstream client below this
	// success rate, once it has seen traffic.
	SuccessRatePercent float64
}

// DefaultThresholds returns the standard tipping points.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CacheMemoryPercent: 90,
		BlockRatePercent:   50,
		SuccessRatePercent: 70,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.CacheMemoryPercent <= 0 {
		t.CacheMemoryPercent = d.CacheMemoryPercent
	}
	if t.BlockRatePercent <= 0 {
		t.BlockRatePercent = d.BlockRatePercent
	}
	if t.SuccessRatePercent <= 0 {
		t.SuccessRatePercent = d.SuccessRatePercent
	}
	return t
}

// Report is the aggregated service health.
type Report struct {
	Status     Status            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components []ComponentHealth `json:"components"`
}

// Aggregator folds component checks into a single service report.
type Aggregator struct {
	checkers []Checker
	logger   zerolog.Logger
}

// NewAggregator creates an aggregator over the given checkers. Order is
// preserved in the report.
func NewAggregator(logger zerolog.Logger, checkers ...Checker) *Aggregator {
	return &Aggregator{
		checkers: checkers,
		logger:   logger,
	}
}

// Report runs every checker and folds the worst status. A single down
// component takes the whole service down; a degraded component degrades
// it.
func (a *Aggregator) Report(ctx context.Context, detailed bool) Report {
	report := Report{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC(),
		Components: make([]ComponentHealth, 0, len(a.checkers)),
	}

	for _, checker := range a.checkers {
		ch := checker.Check(ctx, detailed)
		report.Components = append(report.Components, ch)
		report.Status = report.Status.Worse(ch.Status)

		if ch.Status != StatusHealthy {
			a.logger.Warn().
				Str("component", ch.Name).
				Str("status", string(ch.Status)).
				Str("message", ch.Message).
				Msg("Component health check not healthy")
		}
	}

	return report
}
