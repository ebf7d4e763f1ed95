package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kodal/kodal/pkg/apierr"
)

// Envelope is the uniform response shape. Exactly one of Data and Error
// is non-null.
type Envelope struct {
	Success  bool       `json:"success"`
	Data     any        `json:"data"`
	Error    *ErrorInfo `json:"error"`
	Metadata Metadata   `json:"metadata"`
}

// ErrorInfo is the wire form of an error.
type ErrorInfo struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// Metadata annotates every response.
type Metadata struct {
	Timestamp      time.Time `json:"timestamp"`
	Cached         *bool     `json:"cached,omitempty"`
	ProcessingTime *int64    `json:"processingTime,omitempty"` // milliseconds
}

// meta builds response metadata. cached and elapsed are optional.
func meta(cached *bool, elapsed *time.Duration) Metadata {
	m := Metadata{Timestamp: time.Now().UTC()}
	m.Cached = cached
	if elapsed != nil {
		ms := elapsed.Milliseconds()
		m.ProcessingTime = &ms
	}
	return m
}

func boolPtr(b bool) *bool { return &b }

// respond writes a success envelope.
func (s *Server) respond(w http.ResponseWriter, status int, data any, m Metadata) {
	s.writeJSON(w, status, Envelope{
		Success:  true,
		Data:     data,
		Metadata: m,
	})
}

// respondError normalizes err into the envelope's error shape. In
// production, internal and unclassified errors are genericized so
// implementation detail never leaks to clients.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	e := apierr.From(err)

	info := &ErrorInfo{
		Code:      string(e.Code),
		Message:   e.Message,
		Details:   e.Details,
		Retryable: e.Retryable,
	}
	if s.cfg.Production && (e.Code == apierr.CodeInternal || !apierr.Known(e.Code)) {
		info.Message = "An internal error occurred"
		info.Details = nil
	}

	s.writeJSON(w, e.Status, Envelope{
		Success:  false,
		Error:    info,
		Metadata: meta(nil, nil),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, env Envelope) {
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response envelope")
	}
}
