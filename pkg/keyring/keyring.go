package keyring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kodal/kodal/pkg/apierr"
	"github.com/kodal/kodal/pkg/events"
	"github.com/kodal/kodal/pkg/log"
)

// Status represents the lifecycle state of a key record. Transitions are
// monotonic: active may become expired or suspended, never the reverse.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusSuspended Status = "suspended"
)

// PrimaryProvider is the provider every lookup falls back to.
const PrimaryProvider = "primary"

// ServiceProviders lists the per-service providers that may carry their
// own key via PUBLIC_DATA_<SERVICE>_API_KEY.
var ServiceProviders = []string{
	"address",
	"business",
	"apartment",
	"realestate",
	"building",
	"subway",
}

// keyFormat is the accepted shape of a portal credential.
var keyFormat = regexp.MustCompile(`^[A-Za-z0-9%+/=]{20,}$`)

// farFuture is the expiry sentinel for keys configured without one.
var farFuture = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// expiry warning bands, in days.
const (
	urgentWindow  = 7
	warningWindow = 30
)

// Record holds one credential. The secret is never serialized and never
// mutated after load; only Status and LastUsedAt change.
type Record struct {
	Secret     string    `json:"-"`
	Provider   string    `json:"provider"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// Stats summarizes the registry for health checks and the stats endpoint.
type Stats struct {
	TotalKeys    int `json:"totalKeys"`
	ActiveKeys   int `json:"activeKeys"`
	ExpiredKeys  int `json:"expiredKeys"`
	ExpiringSoon int `json:"expiringSoon"`
}

// Options configures a Registry. Primary is required and must match the
// portal key format. Expiry overrides the expiry of any provider,
// including primary.
type Options struct {
	Primary       string
	PrimaryExpiry time.Time
	Services      map[string]string
	Expiry        map[string]time.Time
	Logger        zerolog.Logger
	Broker        *events.Broker
}

// Registry holds the process's credentials. It is read-mostly after
// construction: lookups mutate only LastUsedAt and lazy status flips.
type Registry struct {
	mu     sync.RWMutex
	keys   map[string]*Record
	logger zerolog.Logger
	broker *events.Broker
}

// New builds a Registry from explicit options. A missing or malformed
// primary key is a fatal configuration error.
func New(opts Options) (*Registry, error) {
	if opts.Primary == "" {
		return nil, apierr.New(apierr.CodeConfiguration,
			"PUBLIC_DATA_API_KEY is required")
	}
	if !keyFormat.MatchString(opts.Primary) {
		return nil, apierr.New(apierr.CodeConfiguration,
			"PUBLIC_DATA_API_KEY does not match the expected key format").
			WithDetail("key", log.MaskSecret(opts.Primary))
	}

	now := time.Now()
	r := &Registry{
		keys:   make(map[string]*Record),
		logger: opts.Logger,
		broker: opts.Broker,
	}

	primaryExpiry := opts.PrimaryExpiry
	if primaryExpiry.IsZero() {
		primaryExpiry = farFuture
	}
	r.keys[PrimaryProvider] = &Record{
		Secret:    opts.Primary,
		Provider:  PrimaryProvider,
		ExpiresAt: primaryExpiry,
		Status:    StatusActive,
		CreatedAt: now,
	}

	for provider, secret := range opts.Services {
		if secret == "" {
			continue
		}
		if !keyFormat.MatchString(secret) {
			r.logger.Warn().
				Str("provider", provider).
				Str("key", log.MaskSecret(secret)).
				Msg("skipping service key with invalid format")
			continue
		}
		r.keys[provider] = &Record{
			Secret:    secret,
			Provider:  provider,
			ExpiresAt: farFuture,
			Status:    StatusActive,
			CreatedAt: now,
		}
	}

	for provider, expiry := range opts.Expiry {
		if rec, ok := r.keys[provider]; ok && !expiry.IsZero() {
			rec.ExpiresAt = expiry
		}
	}

	r.logger.Info().
		Int("keys", len(r.keys)).
		Str("primary", log.MaskSecret(opts.Primary)).
		Msg("API key registry loaded")

	return r, nil
}

// Get returns the secret for a provider, falling back to the primary key
// when the provider is unknown. It fails when the selected record is not
// active or its expiry has passed.
func (r *Registry) Get(provider string) (string, error) {
	if provider == "" {
		provider = PrimaryProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.keys[provider]
	if !ok {
		rec, ok = r.keys[PrimaryProvider]
		if !ok {
			return "", apierr.New(apierr.CodeAPIKey, "no API key configured").
				WithDetail("provider", provider)
		}
	}

	now := time.Now()
	if !rec.ExpiresAt.After(now) {
		if rec.Status == StatusActive {
			rec.Status = StatusExpired
		}
		return "", apierr.Newf(apierr.CodeAPIKey, "API key for provider %q has expired", rec.Provider).
			WithDetail("provider", rec.Provider).
			WithDetail("expiresAt", rec.ExpiresAt)
	}
	if rec.Status != StatusActive {
		return "", apierr.Newf(apierr.CodeAPIKey, "API key for provider %q is %s", rec.Provider, rec.Status).
			WithDetail("provider", rec.Provider)
	}

	rec.LastUsedAt = now
	return rec.Secret, nil
}

// KeyInfo returns a copy of the record for a provider, if present. No
// primary fallback: inspection answers about exactly what was asked.
func (r *Registry) KeyInfo(provider string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.keys[provider]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Providers returns the configured provider names, primary included.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.keys))
	for provider := range r.keys {
		out = append(out, provider)
	}
	return out
}

// Stats counts records by lifecycle state. ExpiringSoon counts keys with
// 0 < days-until-expiry <= 30.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	s := Stats{TotalKeys: len(r.keys)}
	for _, rec := range r.keys {
		until := rec.ExpiresAt.Sub(now)
		switch {
		case rec.Status == StatusSuspended:
			// neither active nor expired
		case until <= 0 || rec.Status == StatusExpired:
			s.ExpiredKeys++
		default:
			s.ActiveKeys++
			if until <= warningWindow*24*time.Hour {
				s.ExpiringSoon++
			}
		}
	}
	return s
}

// CheckExpiry logs the expiry posture of every record in three bands:
// EXPIRED (already past), URGENT (within 7 days), WARNING (within 30
// days). Advisory only; no record is mutated.
func (r *Registry) CheckExpiry() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	for _, rec := range r.keys {
		until := rec.ExpiresAt.Sub(now)
		daysLeft := int(until.Hours() / 24)
		masked := log.MaskSecret(rec.Secret)

		switch {
		case until <= 0:
			r.logger.Error().
				Str("band", "EXPIRED").
				Str("provider", rec.Provider).
				Str("key", masked).
				Time("expired_at", rec.ExpiresAt).
				Msg("API key has expired")
			r.broker.Publish(&events.Event{
				Type:    events.EventKeyExpired,
				Message: fmt.Sprintf("API key for provider %q has expired", rec.Provider),
				Metadata: map[string]string{
					"provider": rec.Provider,
				},
			})
		case until <= urgentWindow*24*time.Hour:
			r.logger.Warn().
				Str("band", "URGENT").
				Str("provider", rec.Provider).
				Str("key", masked).
				Int("days_left", daysLeft).
				Msg("API key expires within 7 days")
			r.publishExpiring(rec.Provider, daysLeft)
		case until <= warningWindow*24*time.Hour:
			r.logger.Warn().
				Str("band", "WARNING").
				Str("provider", rec.Provider).
				Str("key", masked).
				Int("days_left", daysLeft).
				Msg("API key expires within 30 days")
			r.publishExpiring(rec.Provider, daysLeft)
		}
	}
}

func (r *Registry) publishExpiring(provider string, daysLeft int) {
	r.broker.Publish(&events.Event{
		Type:    events.EventKeyExpiring,
		Message: fmt.Sprintf("API key for provider %q expires in %d days", provider, daysLeft),
		Metadata: map[string]string{
			"provider":  provider,
			"days_left": fmt.Sprintf("%d", daysLeft),
		},
	})
}

// Identifier returns a stable, non-secret surrogate for a provider's
// credential, suitable as a rate-limit bucket identifier. The secret
// itself never appears in bucket keys, logs, or violation records.
func (r *Registry) Identifier(provider string) string {
	if provider == "" {
		provider = PrimaryProvider
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.keys[provider]
	if !ok {
		rec, ok = r.keys[PrimaryProvider]
		if !ok {
			return "unknown"
		}
	}
	sum := sha256.Sum256([]byte(rec.Secret))
	return rec.Provider + ":" + hex.EncodeToString(sum[:])[:8]
}

// Suspend marks a provider's key suspended. Suspension is terminal, like
// expiry: the record never returns to active.
func (r *Registry) Suspend(provider string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.keys[provider]
	if !ok || rec.Status != StatusActive {
		return false
	}
	rec.Status = StatusSuspended
	r.logger.Warn().Str("provider", provider).Msg("API key suspended")
	return true
}

// MaskKey masks a secret for display: first four characters kept, the
// rest replaced with asterisks.
func MaskKey(secret string) string {
	return log.MaskSecret(secret)
}

// ValidFormat reports whether a secret matches the portal key format.
func ValidFormat(secret string) bool {
	return keyFormat.MatchString(secret)
}
