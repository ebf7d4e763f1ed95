package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kodal/kodal/pkg/apierr"
	"github.com/kodal/kodal/pkg/cache"
	"github.com/kodal/kodal/pkg/coord"
	"github.com/kodal/kodal/pkg/metrics"
)

// maxBatchPoints bounds one POST transform request.
const maxBatchPoints = 100

// transformData is the single-point conversion response.
type transformData struct {
	From        coord.Code  `json:"from"`
	To          coord.Code  `json:"to"`
	Input       coord.Point `json:"input"`
	Transformed coord.Point `json:"transformed"`
	Accuracy    string      `json:"accuracy,omitempty"`
}

// handleTransformGet converts a single point given as query parameters.
// Results are cached: the same point and system pair answers from the
// cache for a week.
func (s *Server) handleTransformGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	from := coord.Code(q.Get("from"))
	if from == "" {
		s.respondError(w, apierr.New(apierr.CodeValidation,
			"query parameter 'from' is required").
			WithDetail("supported", coord.SupportedSystems()))
		return
	}
	to := coord.Code(q.Get("to"))
	if to == "" {
		to = coord.WGS84
	}

	x, err := parseFloatParam(q.Get("x"), "x")
	if err != nil {
		s.respondError(w, err)
		return
	}
	y, err := parseFloatParam(q.Get("y"), "y")
	if err != nil {
		s.respondError(w, err)
		return
	}

	key := fmt.Sprintf("%s,%s,%s,%s", q.Get("x"), q.Get("y"), from, to)
	if s.cache != nil {
		if hit, ok := s.cache.Get(cache.TypeCoordinate, key); ok {
			setCacheHeader(w, cache.TypeCoordinate)
			s.respond(w, http.StatusOK, hit, meta(boolPtr(true), nil))
			return
		}
	}

	result, err := s.engine.TransformWithMetadata(coord.Point{X: x, Y: y}, from, to)
	if err != nil {
		s.respondError(w, err)
		return
	}
	metrics.TransformsTotal.Inc()

	data := transformData{
		From:        result.Input.System,
		To:          result.Output.System,
		Input:       result.Input.Point,
		Transformed: result.Output.Point,
		Accuracy:    result.Accuracy,
	}
	if s.cache != nil {
		if err := s.cache.Set(cache.TypeCoordinate, key, data); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to cache transform result")
		}
	}

	setCacheHeader(w, cache.TypeCoordinate)
	elapsed := time.Since(start)
	s.respond(w, http.StatusOK, data, meta(boolPtr(false), &elapsed))
}

// transformRequest is the POST transform body. Points accept {x,y} or
// {longitude,latitude}.
type transformRequest struct {
	From   coord.Code    `json:"from"`
	To     coord.Code    `json:"to"`
	Points []coord.Input `json:"points"`
}

type transformBatchData struct {
	From        coord.Code    `json:"from"`
	To          coord.Code    `json:"to"`
	Count       int           `json:"count"`
	Transformed []coord.Point `json:"transformed"`
}

// handleTransformPost converts up to 100 points in one call.
func (s *Server) handleTransformPost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req transformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apierr.Wrap(apierr.CodeValidation,
			"request body is not valid JSON", err))
		return
	}

	if req.From == "" {
		s.respondError(w, apierr.New(apierr.CodeValidation, "'from' is required"))
		return
	}
	if req.To == "" {
		req.To = coord.WGS84
	}
	if len(req.Points) == 0 {
		s.respondError(w, apierr.New(apierr.CodeValidation, "'points' must not be empty"))
		return
	}
	if len(req.Points) > maxBatchPoints {
		s.respondError(w, apierr.Newf(apierr.CodeValidation,
			"'points' exceeds the batch limit of %d", maxBatchPoints).
			WithDetail("count", len(req.Points)))
		return
	}

	points := make([]coord.Point, len(req.Points))
	for i, in := range req.Points {
		p, err := coord.Normalize(in)
		if err != nil {
			s.respondError(w, apierr.From(err).WithDetail("index", i))
			return
		}
		points[i] = p
	}

	transformed, err := s.engine.TransformBatch(points, req.From, req.To)
	if err != nil {
		s.respondError(w, err)
		return
	}
	metrics.TransformsTotal.Add(float64(len(transformed)))

	elapsed := time.Since(start)
	s.respond(w, http.StatusOK, transformBatchData{
		From:        req.From,
		To:          req.To,
		Count:       len(transformed),
		Transformed: transformed,
	}, meta(nil, &elapsed))
}

// handleSystems lists the supported coordinate systems.
func (s *Server) handleSystems(w http.ResponseWriter, r *http.Request) {
	setCacheHeader(w, cache.TypeStatic)
	systems := coord.Systems()
	s.respond(w, http.StatusOK, map[string]any{
		"systems": systems,
		"count":   len(systems),
	}, meta(nil, nil))
}

// handleDetect guesses the coordinate system of a point from its
// magnitude.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, err := parseFloatParam(q.Get("x"), "x")
	if err != nil {
		s.respondError(w, err)
		return
	}
	y, err := parseFloatParam(q.Get("y"), "y")
	if err != nil {
		s.respondError(w, err)
		return
	}

	p := coord.Point{X: x, Y: y}
	detected, ok := s.engine.DetectSystem(p)
	if !ok {
		s.respondError(w, apierr.New(apierr.CodeNotFound,
			"point does not fall within any supported system's bounds").
			WithDetail("x", x).
			WithDetail("y", y))
		return
	}

	s.respond(w, http.StatusOK, map[string]any{
		"detected": detected,
		"point":    p,
	}, meta(nil, nil))
}

func parseFloatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, apierr.Newf(apierr.CodeValidation,
			"query parameter '%s' is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apierr.Newf(apierr.CodeValidation,
			"query parameter '%s' is not a number", name).
			WithDetail(name, raw)
	}
	return v, nil
}

// setCacheHeader marks a response publicly cacheable for the type's TTL.
func setCacheHeader(w http.ResponseWriter, t cache.Type) {
	maxAge := int(cache.TTLFor(t).Seconds())
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
}
