package framework

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kodal/kodal/pkg/cache"
	"github.com/kodal/kodal/pkg/coord"
	"github.com/kodal/kodal/pkg/events"
	"github.com/kodal/kodal/pkg/gateway"
	"github.com/kodal/kodal/pkg/health"
	"github.com/kodal/kodal/pkg/keyring"
	"github.com/kodal/kodal/pkg/ratelimit"
	"github.com/kodal/kodal/pkg/upstream"
)

// TestKey is the primary credential used by the wired environment.
const TestKey = "e2eTestKEY1234567890abcd=="

// Env is a fully wired in-process gateway over a stubbed portal. The
// portal handler is swappable mid-test.
type Env struct {
	Server   *gateway.Server
	Portal   *httptest.Server
	Keys     *keyring.Registry
	Cache    *cache.Cache
	Limiter  *ratelimit.Limiter
	Engine   *coord.Engine
	Upstream *upstream.Client
	Broker   *events.Broker

	mu            sync.Mutex
	portalHandler http.HandlerFunc
	portalCalls   int
}

// NewEnv wires every component against a stubbed portal that answers
// `{}` until SetPortal swaps the handler in.
func NewEnv(t TestingT) *Env {
	t.Helper()

	e := &Env{}
	e.portalHandler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}
	e.Portal = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.portalCalls++
		h := e.portalHandler
		e.mu.Unlock()
		h(w, r)
	}))

	broker := events.NewBroker()
	broker.Start()
	e.Broker = broker

	keys, err := keyring.New(keyring.Options{
		Primary: TestKey,
		Logger:  zerolog.Nop(),
		Broker:  broker,
	})
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	e.Keys = keys

	e.Cache = cache.New(cache.Options{Logger: zerolog.Nop()})
	e.Limiter = ratelimit.New(ratelimit.Options{Logger: zerolog.Nop(), Broker: broker})
	e.Engine = coord.New(coord.Options{Logger: zerolog.Nop()})

	e.Upstream = upstream.New(upstream.Config{
		BaseURL:     e.Portal.URL,
		MaxRetries:  2,
		RetryDelay:  time.Millisecond,
		EnableCache: true,
	}, upstream.Deps{
		Keys:   keys,
		Cache:  e.Cache,
		Logger: zerolog.Nop(),
		Broker: broker,
	})

	thresholds := health.Thresholds{}
	aggregator := health.NewAggregator(zerolog.Nop(),
		health.NewKeyringChecker(keys),
		health.NewCacheChecker(e.Cache, thresholds),
		health.NewLimiterChecker(e.Limiter, thresholds),
		health.NewUpstreamChecker(e.Upstream, thresholds),
	)

	e.Server = gateway.New(gateway.Config{Addr: ":0"}, gateway.Deps{
		Keys:     keys,
		Cache:    e.Cache,
		Limiter:  e.Limiter,
		Engine:   e.Engine,
		Upstream: e.Upstream,
		Health:   aggregator,
		Broker:   broker,
		Logger:   zerolog.Nop(),
	})

	return e
}

// SetPortal swaps the stubbed portal's handler.
func (e *Env) SetPortal(h http.HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.portalHandler = h
}

// PortalCalls reports how many requests reached the stubbed portal.
func (e *Env) PortalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portalCalls
}

// Close tears the environment down.
func (e *Env) Close() {
	e.Portal.Close()
	e.Broker.Stop()
}

// Client returns an HTTP client over the in-process router.
func (e *Env) Client() *Client {
	return NewClient(e.Server.Handler())
}
