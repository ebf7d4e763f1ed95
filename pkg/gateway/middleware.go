package gateway

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kodal/kodal/pkg/apierr"
	"github.com/kodal/kodal/pkg/metrics"
	"github.com/kodal/kodal/pkg/ratelimit"
)

// requestIDHeader carries the per-request correlation ID.
const requestIDHeader = "X-Request-ID"

// requestID assigns a UUID to every request, honoring one supplied by
// the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// recoverer converts handler panics into INTERNAL_SERVER_ERROR
// envelopes instead of dropped connections.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("Handler panic recovered")
				s.respondError(w, apierr.Newf(apierr.CodeInternal, "panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLog logs one line per request and feeds the HTTP metrics.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", elapsed).
			Str("remote", clientIP(r)).
			Str("request_id", ww.Header().Get(requestIDHeader)).
			Msg("Request handled")
	})
}

// rateLimit admits or denies per client IP in the given tier. Every
// response carries the bucket headers; denials add Retry-After.
func (s *Server) rateLimit(tier ratelimit.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			d := s.limiter.Check(clientIP(r), tier)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset, 10))

			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(d.RetryAfter, 10))
				s.respondError(w, apierr.New(apierr.CodeRateLimit,
					fmt.Sprintf("Rate limit of %d requests per hour exceeded", d.Limit)).
					WithDetail("retryAfter", d.RetryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the caller address. RealIP has already resolved
// X-Forwarded-For into RemoteAddr by the time this runs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
