package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/kodal/kodal/pkg/apierr"
	"github.com/kodal/kodal/pkg/cache"
	"github.com/kodal/kodal/pkg/coord"
	"github.com/kodal/kodal/pkg/events"
	"github.com/kodal/kodal/pkg/health"
	"github.com/kodal/kodal/pkg/keyring"
	"github.com/kodal/kodal/pkg/metrics"
	"github.com/kodal/kodal/pkg/ratelimit"
	"github.com/kodal/kodal/pkg/upstream"
)

// Config holds the gateway's own settings.
type Config struct {
	Addr string

	// Production genericizes internal error messages on the wire.
	Production bool

	// ShutdownTimeout bounds the graceful drain.
	ShutdownTimeout time.Duration
}

// Deps are the wired components. Health and Broker may be nil in tests.
type Deps struct {
	Keys     *keyring.Registry
	Cache    *cache.Cache
	Limiter  *ratelimit.Limiter
	Engine   *coord.Engine
	Upstream *upstream.Client
	Health   *health.Aggregator
	Broker   *events.Broker
	Logger   zerolog.Logger
}

// Server is the HTTP surface over the wired components.
type Server struct {
	cfg      Config
	keys     *keyring.Registry
	cache    *cache.Cache
	limiter  *ratelimit.Limiter
	engine   *coord.Engine
	upstream *upstream.Client
	health   *health.Aggregator
	broker   *events.Broker
	logger   zerolog.Logger

	router chi.Router
	srv    *http.Server
	stopCh chan struct{}
}

// New wires the router. The server does not own its components; Start
// and Shutdown only manage the listener and the audit subscription.
func New(cfg Config, deps Deps) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		keys:     deps.Keys,
		cache:    deps.Cache,
		limiter:  deps.Limiter,
		engine:   deps.Engine,
		upstream: deps.Upstream,
		health:   deps.Health,
		broker:   deps.Broker,
		logger:   deps.Logger,
		stopCh:   make(chan struct{}),
	}
	s.router = s.buildRouter()
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		MaxAge:         300,
	}))
	r.Use(s.accessLog)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Method("GET", "/metrics", metrics.Handler())

	r.Route("/api/coordinate", func(r chi.Router) {
		r.With(s.rateLimit(ratelimit.TierAnonymous)).
			Get("/transform", s.handleTransformGet)
		r.With(s.rateLimit(ratelimit.TierAuthenticated)).
			Post("/transform", s.handleTransformPost)
		r.Get("/systems", s.handleSystems)
		r.With(s.rateLimit(ratelimit.TierAnonymous)).
			Get("/detect", s.handleDetect)
	})

	r.With(s.rateLimit(ratelimit.TierAnonymous)).
		Get("/api/address", s.handleAddress)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, apierr.Newf(apierr.CodeNotFound,
			"route %s not found", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, apierr.Newf(apierr.CodeValidation,
			"method %s not allowed for %s", r.Method, r.URL.Path))
	})

	return r
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving and subscribes to the advisory event stream.
// It blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	if s.broker != nil {
		go s.auditEvents(s.broker.Subscribe())
	}

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("Gateway listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopCh)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// auditEvents turns component events into audit log records.
func (s *Server) auditEvents(sub events.Subscriber) {
	defer s.broker.Unsubscribe(sub)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.logger.Warn().
				Str("event", string(ev.Type)).
				Fields(map[string]any{"metadata": ev.Metadata}).
				Msg(ev.Message)
		case <-s.stopCh:
			return
		}
	}
}

// handleHealth reports aggregated service health. A down service
// answers 503 so load balancers stop routing to it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if s.health == nil {
		s.respondError(w, apierr.New(apierr.CodeServiceUnavailable,
			"health aggregation not configured"))
		return
	}

	detailed := r.URL.Query().Get("detailed") == "true"
	report := s.health.Report(r.Context(), detailed)

	status := http.StatusOK
	if report.Status == health.StatusDown {
		status = http.StatusServiceUnavailable
	}
	s.respond(w, status, report, meta(nil, nil))
}

// handleStats exposes the component stats snapshots for operators.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if s.keys != nil {
		data["apiKeys"] = s.keys.Stats()
	}
	if s.cache != nil {
		data["cache"] = s.cache.DetailedStats()
	}
	if s.limiter != nil {
		data["rateLimit"] = s.limiter.Stats()
	}
	if s.upstream != nil {
		data["upstream"] = s.upstream.Stats()
	}
	s.respond(w, http.StatusOK, data, meta(nil, nil))
}
