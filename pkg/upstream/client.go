package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/kodal/kodal/pkg/apierr"
	"github.com/kodal/kodal/pkg/cache"
	"github.com/kodal/kodal/pkg/events"
	"github.com/kodal/kodal/pkg/keyring"
	"github.com/kodal/kodal/pkg/log"
	"github.com/kodal/kodal/pkg/ratelimit"
)

const (
	// DefaultBaseURL is the public-data portal root.
	DefaultBaseURL = "https://apis.data.go.kr"
	// DefaultTimeout bounds one attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries bounds retry attempts after the first.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the base of the linear backoff curve: the
	// delay before attempt i is i × RetryDelay.
	DefaultRetryDelay = time.Second

	// maxBodyBytes caps how much of an upstream body is read.
	maxBodyBytes = 10 * 1024 * 1024

	acceptHeader = "application/json, application/xml"
)

// Config holds the client's knobs. Zero values fall back to the
// defaults above.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	Provider        string
	EnableCache     bool
	EnableRateLimit bool
	EnableBreaker   bool
}

// Deps are the collaborators injected at construction.
type Deps struct {
	Keys    *keyring.Registry
	Limiter *ratelimit.Limiter
	Cache   *cache.Cache
	Logger  zerolog.Logger
	Broker  *events.Broker
	// HTTPClient overrides the transport, mainly for tests. The
	// per-attempt timeout comes from Config.Timeout either way.
	HTTPClient *http.Client
}

// Response is a successful upstream payload plus cache provenance.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Status int             `json:"status"`
	Cached bool            `json:"cached"`
}

// Stats summarizes client activity since the last reset.
type Stats struct {
	TotalRequests       int64   `json:"totalRequests"`
	SuccessfulRequests  int64   `json:"successfulRequests"`
	FailedRequests      int64   `json:"failedRequests"`
	CachedRequests      int64   `json:"cachedRequests"`
	RateLimitedRequests int64   `json:"rateLimitedRequests"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	SuccessRate         float64 `json:"successRate"`
}

// Client dispatches requests to the public-data portal: credential
// injection, admission, bounded retries, classification, and an optional
// caching adapter.
type Client struct {
	cfg     Config
	keys    *keyring.Registry
	limiter *ratelimit.Limiter
	cache   *cache.Cache
	logger  zerolog.Logger
	broker  *events.Broker
	http    *http.Client
	breaker *gobreaker.CircuitBreaker

	mu          sync.Mutex
	total       int64
	successful  int64
	failed      int64
	cached      int64
	rateLimited int64
}

// New creates a Client. Keys is required; Limiter and Cache may be nil
// when the corresponding feature is disabled.
func New(cfg Config, deps Deps) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		cfg:     cfg,
		keys:    deps.Keys,
		limiter: deps.Limiter,
		cache:   deps.Cache,
		logger:  deps.Logger,
		broker:  deps.Broker,
		http:    httpClient,
	}

	if cfg.EnableBreaker {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "upstream",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("upstream circuit breaker state change")
				evType := events.EventBreakerClosed
				if to == gobreaker.StateOpen {
					evType = events.EventBreakerOpened
				}
				c.broker.Publish(&events.Event{
					Type:    evType,
					Message: fmt.Sprintf("upstream breaker %s: %s -> %s", name, from, to),
					Metadata: map[string]string{
						"name": name,
					},
				})
			},
		})
	}
	return c
}

// Get performs a credential-injected GET against the portal.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, params, nil)
}

// Post performs a credential-injected POST with a JSON body. The
// serviceKey still travels as a query parameter, matching the portal's
// convention.
func (c *Client) Post(ctx context.Context, endpoint string, params map[string]string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, endpoint, params, body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]string, body any) (*Response, error) {
	c.mu.Lock()
	c.total++
	c.mu.Unlock()

	secret, err := c.keys.Get(c.cfg.Provider)
	if err != nil {
		c.recordFailure()
		return nil, err
	}

	if c.cfg.EnableRateLimit && c.limiter != nil {
		id := c.keys.Identifier(c.cfg.Provider)
		d := c.limiter.Check(id, ratelimit.TierAuthenticated)
		if !d.Allowed {
			c.mu.Lock()
			c.rateLimited++
			c.mu.Unlock()
			return nil, apierr.New(apierr.CodeRateLimit, "upstream admission denied").
				WithDetail("retryAfter", d.RetryAfter).
				WithDetail("limit", d.Limit)
		}
	}

	reqURL, err := c.buildURL(endpoint, params, secret)
	if err != nil {
		c.recordFailure()
		return nil, apierr.Wrap(apierr.CodeValidation, "invalid upstream endpoint", err).
			WithDetail("endpoint", endpoint)
	}

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Interface("params", log.MaskParams(withServiceKey(params, secret))).
		Msg("upstream request")

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			c.recordFailure()
			return nil, apierr.Wrap(apierr.CodeValidation, "request body is not serializable", err)
		}
	}

	resp, err := c.send(ctx, method, reqURL, bodyBytes)
	if err != nil {
		c.recordFailure()
		return nil, err
	}

	c.mu.Lock()
	c.successful++
	c.mu.Unlock()
	return resp, nil
}

// send runs the attempt loop: linear backoff between attempts, retry on
// network errors, 429, and 5xx, short-circuit on other 4xx.
func (c *Client) send(ctx context.Context, method, reqURL string, body []byte) (*Response, error) {
	var lastErr *apierr.Error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		resp, err := c.attempt(ctx, method, reqURL, body)
		if err == nil {
			return resp, nil
		}

		lastErr = apierr.From(err)
		if !lastErr.Retryable || attempt == c.cfg.MaxRetries {
			break
		}

		delay := time.Duration(attempt) * c.cfg.RetryDelay
		c.logger.Debug().
			Int("attempt", attempt).
			Dur("delay", delay).
			Str("code", string(lastErr.Code)).
			Msg("retrying upstream request")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, apierr.Wrap(apierr.CodeTimeout, "request cancelled while waiting to retry", ctx.Err())
		}
	}
	return nil, lastErr
}

// attempt performs one HTTP exchange, optionally through the breaker,
// and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method, reqURL string, body []byte) (*Response, error) {
	if c.breaker == nil {
		return c.exchange(ctx, method, reqURL, body)
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.exchange(ctx, method, reqURL, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apierr.Wrap(apierr.CodeServiceUnavailable, "upstream circuit breaker open", err)
		}
		return nil, err
	}
	return out.(*Response), nil
}

// exchange is one request/response cycle with its own deadline. The body
// is always drained and closed so the connection returns to the pool.
func (c *Client) exchange(ctx context.Context, method, reqURL string, body []byte) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, reqURL, reader)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternal, "failed to build upstream request", err)
	}
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() != nil {
			return nil, apierr.Wrap(apierr.CodeTimeout, "upstream request timed out", err)
		}
		return nil, apierr.Wrap(apierr.CodeExternalAPI, "upstream connection failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeExternalAPI, "failed to read upstream response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apierr.New(apierr.CodeRateLimit, "upstream rate limit exceeded").
			WithDetail("status", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, apierr.Newf(apierr.CodeExternalAPI, "upstream server error %d", resp.StatusCode).
			WithDetail("status", resp.StatusCode)
	case resp.StatusCode >= 400:
		// Client-class answers are final; retrying cannot help.
		return nil, apierr.Newf(apierr.CodeExternalAPI, "upstream rejected request with %d", resp.StatusCode).
			WithDetail("status", resp.StatusCode).
			WithRetryable(false)
	}

	return &Response{Data: data, Status: resp.StatusCode}, nil
}

// GetCached is the caching adapter around Get: the key is the endpoint
// plus its lexicographically sorted parameters, and only successful
// responses are stored.
func (c *Client) GetCached(ctx context.Context, cacheType cache.Type, endpoint string, params map[string]string) (*Response, error) {
	if !c.cfg.EnableCache || c.cache == nil {
		return c.Get(ctx, endpoint, params)
	}

	key := CacheKey(endpoint, params)
	if v, ok := c.cache.Get(cacheType, key); ok {
		c.mu.Lock()
		c.total++
		c.cached++
		c.mu.Unlock()

		stored := v.(*Response)
		return &Response{Data: stored.Data, Status: stored.Status, Cached: true}, nil
	}

	resp, err := c.Get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(cacheType, key, resp); err != nil {
		// A cache fault never fails the request.
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to cache upstream response")
	}
	return resp, nil
}

// InvalidateCache clears one cache type, or everything when the type is
// empty.
func (c *Client) InvalidateCache(cacheType cache.Type) int {
	if c.cache == nil {
		return 0
	}
	var removed int
	if cacheType == "" {
		removed = c.cache.Len()
		c.cache.Clear()
	} else {
		removed = c.cache.DeleteByType(cacheType)
	}
	c.broker.Publish(&events.Event{
		Type:     events.EventCacheCleared,
		Message:  "upstream cache invalidated",
		Metadata: map[string]string{"type": string(cacheType)},
	})
	return removed
}

// Stats returns a consistent snapshot of the client's counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		TotalRequests:       c.total,
		SuccessfulRequests:  c.successful,
		FailedRequests:      c.failed,
		CachedRequests:      c.cached,
		RateLimitedRequests: c.rateLimited,
	}
	if c.total > 0 {
		s.CacheHitRate = float64(c.cached) / float64(c.total) * 100
		s.SuccessRate = float64(c.successful+c.cached) / float64(c.total) * 100
	}
	return s
}

// ResetStats zeroes the counters.
func (c *Client) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total = 0
	c.successful = 0
	c.failed = 0
	c.cached = 0
	c.rateLimited = 0
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

// buildURL joins the base URL, endpoint, caller parameters, and the
// injected serviceKey.
func (c *Client) buildURL(endpoint string, params map[string]string, secret string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	u = u.JoinPath(endpoint)

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("serviceKey", secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CacheKey builds the canonical cache key: the endpoint followed by its
// parameters sorted lexicographically, or the bare endpoint when there
// are none.
func CacheKey(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

func withServiceKey(params map[string]string, secret string) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["serviceKey"] = secret
	return out
}
