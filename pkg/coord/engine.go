package coord

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/kodal/kodal/pkg/apierr"
)

// Point is a coordinate pair in {x,y} form. For degree systems x carries
// longitude and y latitude.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Input is a point in either wire representation: projected {x,y} or
// geographic {longitude,latitude}.
type Input struct {
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
}

// Normalize converts either representation to {x,y} form, mapping
// longitude to x and latitude to y. A point carrying neither complete
// pair is rejected.
func Normalize(in Input) (Point, error) {
	switch {
	case in.X != nil && in.Y != nil:
		return Point{X: *in.X, Y: *in.Y}, nil
	case in.Longitude != nil && in.Latitude != nil:
		return Point{X: *in.Longitude, Y: *in.Latitude}, nil
	default:
		return Point{}, apierr.New(apierr.CodeCoordinate,
			"point requires either x/y or longitude/latitude")
	}
}

// Korean extent in WGS84 degrees. Points outside it are suspicious but
// not invalid; validation reports them as warnings.
var koreaBounds = Range{MinX: 124, MaxX: 132, MinY: 33, MaxY: 39}

// Validation is the outcome of checking a point against one system.
type Validation struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	DetectedSystem Code     `json:"detectedSystem,omitempty"`
}

// TransformResult couples a conversion with its endpoints for the
// metadata variant of the transform endpoint.
type TransformResult struct {
	Input    SystemPoint `json:"input"`
	Output   SystemPoint `json:"output"`
	Accuracy string      `json:"accuracy"`
}

// SystemPoint is a point tagged with the system it is expressed in.
type SystemPoint struct {
	Point  Point `json:"point"`
	System Code  `json:"system"`
}

// accuracy is the engine's guarantee for same-datum pairs within the
// Korean range.
const accuracy = "<1m"

// Options configures an Engine.
type Options struct {
	// StrictKoreaBounds controls whether WGS84 points outside the Korean
	// extent produce validation warnings.
	StrictKoreaBounds bool
	Logger            zerolog.Logger
}

// Engine converts points between the seven supported systems. It is pure
// and stateless apart from its configuration; methods are safe for
// concurrent use.
type Engine struct {
	strictKorea bool
	logger      zerolog.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	return &Engine{
		strictKorea: opts.StrictKoreaBounds,
		logger:      opts.Logger,
	}
}

// Transform converts a point from one system to another. An empty target
// defaults to WGS84. Same-system transforms return the point unchanged.
func (e *Engine) Transform(p Point, from, to Code) (Point, error) {
	conv, err := e.converter(from, to)
	if err != nil {
		return Point{}, err
	}
	return conv(p)
}

// TransformBatch prepares one converter and applies it to every point in
// a single pass. The first invalid point aborts the batch.
func (e *Engine) TransformBatch(points []Point, from, to Code) ([]Point, error) {
	conv, err := e.converter(from, to)
	if err != nil {
		return nil, err
	}
	out := make([]Point, len(points))
	for i, p := range points {
		r, err := conv(p)
		if err != nil {
			return nil, apierr.From(err).WithDetail("index", i)
		}
		out[i] = r
	}
	return out, nil
}

// TransformWithMetadata converts a point and reports both endpoints plus
// the engine's accuracy guarantee.
func (e *Engine) TransformWithMetadata(p Point, from, to Code) (*TransformResult, error) {
	if to == "" {
		to = WGS84
	}
	r, err := e.Transform(p, from, to)
	if err != nil {
		return nil, err
	}
	return &TransformResult{
		Input:    SystemPoint{Point: p, System: from},
		Output:   SystemPoint{Point: r, System: to},
		Accuracy: accuracy,
	}, nil
}

// converter resolves both systems once and returns the conversion
// closure used by Transform and TransformBatch.
func (e *Engine) converter(from, to Code) (func(Point) (Point, error), error) {
	if to == "" {
		to = WGS84
	}
	src, err := Lookup(from)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeCoordinate, "unknown source system", err).
			WithDetail("system", string(from))
	}
	dst, err := Lookup(to)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeCoordinate, "unknown target system", err).
			WithDetail("system", string(to))
	}

	// Same-system conversion passes the point through untouched, even
	// when it falls outside the system's definition range.
	if src.Code == dst.Code {
		return func(p Point) (Point, error) {
			return p, nil
		}, nil
	}

	return func(p Point) (Point, error) {
		if err := e.checkDomain(p, src); err != nil {
			return Point{}, err
		}

		lat, lon := e.toWGS84Geodetic(p, src)
		out := e.fromWGS84Geodetic(lat, lon, dst)

		if !dst.Bounds.Contains(out) {
			e.logger.Debug().
				Str("system", string(dst.Code)).
				Float64("x", out.X).
				Float64("y", out.Y).
				Msg("transform result outside expected system range")
		}
		return out, nil
	}, nil
}

// toWGS84Geodetic unprojects a point in the source system to WGS84
// geodetic coordinates in radians.
func (e *Engine) toWGS84Geodetic(p Point, src *System) (lat, lon float64) {
	if src.Unit == UnitDegree {
		return p.Y * math.Pi / 180, p.X * math.Pi / 180
	}
	lat, lon = tmInverse(src, p.X, p.Y)
	if src.Shift != nil {
		x, y, z := geodeticToECEF(src.Ellipsoid, lat, lon, 0)
		x, y, z = src.Shift.Apply(x, y, z)
		lat, lon, _ = ecefToGeodetic(ellipsoidWGS84, x, y, z)
	}
	return lat, lon
}

// fromWGS84Geodetic projects WGS84 geodetic coordinates (radians) into
// the target system.
func (e *Engine) fromWGS84Geodetic(lat, lon float64, dst *System) Point {
	if dst.Unit == UnitDegree {
		return Point{X: lon * 180 / math.Pi, Y: lat * 180 / math.Pi}
	}
	if dst.Shift != nil {
		x, y, z := geodeticToECEF(ellipsoidWGS84, lat, lon, 0)
		x, y, z = dst.Shift.Inverse(x, y, z)
		lat, lon, _ = ecefToGeodetic(dst.Ellipsoid, x, y, z)
	}
	x, y := tmForward(dst, lat, lon)
	return Point{X: x, Y: y}
}

// checkDomain rejects points outside the source system's definition
// range with COORDINATE_ERROR. Korean-range deviations only warn.
func (e *Engine) checkDomain(p Point, s *System) error {
	v := e.validate(p, s)
	if !v.Valid {
		return apierr.Newf(apierr.CodeCoordinate, "invalid point for %s", s.Code).
			WithDetail("errors", v.Errors).
			WithDetail("point", p)
	}
	for _, w := range v.Warnings {
		e.logger.Debug().Str("system", string(s.Code)).Str("warning", w).Msg("coordinate warning")
	}
	return nil
}

// DetectSystem returns the first system whose numeric range covers the
// point: WGS84 by its degree range, then each projected system by its
// bounded box, in declaration order.
func (e *Engine) DetectSystem(p Point) (Code, bool) {
	for i := range systems {
		if systems[i].Bounds.Contains(p) {
			return systems[i].Code, true
		}
	}
	return "", false
}

// ValidatePoint checks a point against one system. Definition-range
// violations are errors; Korean-range deviations are warnings unless
// strict bounds checking is disabled.
func (e *Engine) ValidatePoint(p Point, system Code) (Validation, error) {
	s, err := Lookup(system)
	if err != nil {
		return Validation{}, apierr.Wrap(apierr.CodeCoordinate, "unknown coordinate system", err).
			WithDetail("system", string(system))
	}
	return e.validate(p, s), nil
}

// IsValidPoint reports whether ValidatePoint would pass without errors.
func (e *Engine) IsValidPoint(p Point, system Code) bool {
	v, err := e.ValidatePoint(p, system)
	return err == nil && v.Valid
}

func (e *Engine) validate(p Point, s *System) Validation {
	v := Validation{Valid: true}

	if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		v.Valid = false
		v.Errors = append(v.Errors, "coordinates must be finite numbers")
		return v
	}

	if s.Unit == UnitDegree {
		if p.X < -180 || p.X > 180 {
			v.Valid = false
			v.Errors = append(v.Errors, fmt.Sprintf("longitude %.6f outside [-180, 180]", p.X))
		}
		if p.Y < -90 || p.Y > 90 {
			v.Valid = false
			v.Errors = append(v.Errors, fmt.Sprintf("latitude %.6f outside [-90, 90]", p.Y))
		}
		if v.Valid && e.strictKorea && !koreaBounds.Contains(p) {
			v.Warnings = append(v.Warnings, "point lies outside the expected Korean extent")
		}
	} else if !s.Bounds.Contains(p) {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("point outside expected %s range x[%.0f, %.0f] y[%.0f, %.0f]",
				s.Code, s.Bounds.MinX, s.Bounds.MaxX, s.Bounds.MinY, s.Bounds.MaxY))
	}

	if v.Valid {
		if detected, ok := e.DetectSystem(p); ok {
			v.DetectedSystem = detected
		}
	}
	return v
}
