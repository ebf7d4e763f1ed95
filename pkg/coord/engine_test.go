package coord

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodal/kodal/pkg/apierr"
)

// seoulCityHall in WGS84.
var seoulCityHall = Point{X: 126.9780, Y: 37.5665}

// busanStation in WGS84, near the eastern belt.
var busanStation = Point{X: 129.0415, Y: 35.1151}

func newTestEngine() *Engine {
	return New(Options{StrictKoreaBounds: true, Logger: zerolog.Nop()})
}

func TestSupportedSystems(t *testing.T) {
	codes := SupportedSystems()
	assert.Equal(t, []Code{
		WGS84, GRS80Central, GRS80West, GRS80East,
		BesselCentral, KATEC, UTMK,
	}, codes)
}

func TestLookupUnknownSystem(t *testing.T) {
	_, err := Lookup(Code("TM128"))
	assert.Error(t, err)
}

func TestSeoulCityHallToGRS80Central(t *testing.T) {
	e := newTestEngine()

	p, err := e.Transform(seoulCityHall, WGS84, GRS80Central)
	require.NoError(t, err)
	assert.InDelta(t, 198056.37, p.X, 1.0)
	assert.InDelta(t, 551885.03, p.Y, 1.0)
}

func TestTransformDefaultsToWGS84(t *testing.T) {
	e := newTestEngine()

	p, err := e.Transform(Point{X: 200000, Y: 600000}, GRS80Central, "")
	require.NoError(t, err)
	// Grid origin maps back to (lon₀, lat₀).
	assert.InDelta(t, 127.0, p.X, 1e-6)
	assert.InDelta(t, 38.0, p.Y, 1e-6)
}

func TestSameSystemIdentity(t *testing.T) {
	e := newTestEngine()

	for _, code := range SupportedSystems() {
		in := seoulCityHall
		if code != WGS84 {
			var err error
			in, err = e.Transform(seoulCityHall, WGS84, code)
			require.NoError(t, err)
		}
		out, err := e.Transform(in, code, code)
		require.NoError(t, err)
		assert.Equal(t, in, out, "identity transform for %s", code)
	}
}

func TestSameSystemSkipsValidation(t *testing.T) {
	e := newTestEngine()

	// A point no system would accept still passes through unchanged
	// when source and target match.
	p := Point{X: 200, Y: 95}
	out, err := e.Transform(p, WGS84, WGS84)
	require.NoError(t, err)
	assert.Equal(t, p, out)
}

func TestRoundTripPreservesWGS84(t *testing.T) {
	e := newTestEngine()

	points := []Point{seoulCityHall, busanStation, {X: 126.5219, Y: 33.5070}}
	targets := []Code{GRS80Central, GRS80West, GRS80East, BesselCentral, KATEC, UTMK}

	for _, target := range targets {
		for _, p := range points {
			projected, err := e.Transform(p, WGS84, target)
			require.NoError(t, err)

			back, err := e.Transform(projected, target, WGS84)
			require.NoError(t, err)

			// Six decimal places of a degree is roughly 0.1 m.
			assert.InDelta(t, p.X, back.X, 1e-6, "%s round trip longitude", target)
			assert.InDelta(t, p.Y, back.Y, 1e-6, "%s round trip latitude", target)
		}
	}
}

func TestProjectedToProjected(t *testing.T) {
	e := newTestEngine()

	central, err := e.Transform(seoulCityHall, WGS84, GRS80Central)
	require.NoError(t, err)

	utmk, err := e.Transform(central, GRS80Central, UTMK)
	require.NoError(t, err)

	direct, err := e.Transform(seoulCityHall, WGS84, UTMK)
	require.NoError(t, err)

	assert.InDelta(t, direct.X, utmk.X, 0.01)
	assert.InDelta(t, direct.Y, utmk.Y, 0.01)
}

func TestTransformOutputsDetectAsTarget(t *testing.T) {
	e := newTestEngine()

	for _, target := range []Code{GRS80Central, BesselCentral, KATEC, UTMK} {
		p, err := e.Transform(seoulCityHall, WGS84, target)
		require.NoError(t, err)

		detected, ok := e.DetectSystem(p)
		require.True(t, ok, "no detection for %s output", target)

		got, err := Lookup(detected)
		require.NoError(t, err)
		assert.True(t, got.Bounds.Contains(p), "detected %s does not cover %s output", detected, target)
	}

	// UTM-K's box overlaps no other system; detection is exact there.
	p, err := e.Transform(seoulCityHall, WGS84, UTMK)
	require.NoError(t, err)
	detected, ok := e.DetectSystem(p)
	require.True(t, ok)
	assert.Equal(t, UTMK, detected)
}

func TestDetectSystem(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name     string
		point    Point
		expected Code
		ok       bool
	}{
		{"degree point", seoulCityHall, WGS84, true},
		{"grs80 grid", Point{X: 200000, Y: 600000}, GRS80Central, true},
		{"bessel grid", Point{X: 200000, Y: 350000}, BesselCentral, true},
		{"utm-k grid", Point{X: 960000, Y: 1950000}, UTMK, true},
		{"no system", Point{X: 5_000_000, Y: 5_000_000}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detected, ok := e.DetectSystem(tt.point)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, detected)
		})
	}
}

func TestDetectPrefersDeclarationOrder(t *testing.T) {
	e := newTestEngine()

	// The metric boxes overlap: {200000, 550000} sits inside both the
	// GRS80 zone box and the Bessel box. Detection answers the earliest
	// declared match, so overlapping grids cannot be told apart.
	detected, ok := e.DetectSystem(Point{X: 200000, Y: 550000})
	require.True(t, ok)
	assert.Equal(t, GRS80Central, detected)
}

func TestValidatePoint(t *testing.T) {
	e := newTestEngine()

	t.Run("valid wgs84", func(t *testing.T) {
		v, err := e.ValidatePoint(seoulCityHall, WGS84)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.Empty(t, v.Errors)
		assert.Empty(t, v.Warnings)
		assert.Equal(t, WGS84, v.DetectedSystem)
	})

	t.Run("longitude out of domain", func(t *testing.T) {
		v, err := e.ValidatePoint(Point{X: 181, Y: 37}, WGS84)
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.NotEmpty(t, v.Errors)
	})

	t.Run("latitude out of domain", func(t *testing.T) {
		v, err := e.ValidatePoint(Point{X: 127, Y: 91}, WGS84)
		require.NoError(t, err)
		assert.False(t, v.Valid)
	})

	t.Run("outside korea warns", func(t *testing.T) {
		v, err := e.ValidatePoint(Point{X: 2.3522, Y: 48.8566}, WGS84)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.NotEmpty(t, v.Warnings)
	})

	t.Run("korea warning suppressed when not strict", func(t *testing.T) {
		lenient := New(Options{StrictKoreaBounds: false, Logger: zerolog.Nop()})
		v, err := lenient.ValidatePoint(Point{X: 2.3522, Y: 48.8566}, WGS84)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.Empty(t, v.Warnings)
	})

	t.Run("non-finite projected point", func(t *testing.T) {
		v, err := e.ValidatePoint(Point{X: math.NaN(), Y: 600000}, GRS80Central)
		require.NoError(t, err)
		assert.False(t, v.Valid)
	})

	t.Run("projected point outside range warns", func(t *testing.T) {
		v, err := e.ValidatePoint(Point{X: 50000, Y: 600000}, GRS80Central)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.NotEmpty(t, v.Warnings)
	})

	t.Run("unknown system", func(t *testing.T) {
		_, err := e.ValidatePoint(seoulCityHall, Code("TM128"))
		require.Error(t, err)
		assert.True(t, apierr.IsCode(err, apierr.CodeCoordinate))
	})
}

func TestIsValidPoint(t *testing.T) {
	e := newTestEngine()

	assert.True(t, e.IsValidPoint(seoulCityHall, WGS84))
	assert.False(t, e.IsValidPoint(Point{X: 181, Y: 37}, WGS84))
	assert.False(t, e.IsValidPoint(seoulCityHall, Code("nope")))
}

func TestTransformRejectsInvalidInput(t *testing.T) {
	e := newTestEngine()

	_, err := e.Transform(Point{X: 200, Y: 37}, WGS84, GRS80Central)
	require.Error(t, err)
	assert.True(t, apierr.IsCode(err, apierr.CodeCoordinate))
}

func TestTransformRejectsUnknownSystems(t *testing.T) {
	e := newTestEngine()

	_, err := e.Transform(seoulCityHall, Code("TM128"), WGS84)
	require.Error(t, err)
	assert.True(t, apierr.IsCode(err, apierr.CodeCoordinate))

	_, err = e.Transform(seoulCityHall, WGS84, Code("TM128"))
	require.Error(t, err)
	assert.True(t, apierr.IsCode(err, apierr.CodeCoordinate))
}

func TestTransformBatch(t *testing.T) {
	e := newTestEngine()

	points := []Point{
		{X: 200000, Y: 600000},
		{X: 200100, Y: 600100},
	}
	out, err := e.TransformBatch(points, GRS80Central, WGS84)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 127.0, out[0].X, 1e-6)
	assert.InDelta(t, 38.0, out[0].Y, 1e-6)
	// The second point sits ~100 m north-east of the first.
	assert.Greater(t, out[1].X, out[0].X)
	assert.Greater(t, out[1].Y, out[0].Y)
}

func TestTransformBatchAbortsOnInvalidPoint(t *testing.T) {
	e := newTestEngine()

	_, err := e.TransformBatch([]Point{seoulCityHall, {X: 200, Y: 95}}, WGS84, GRS80Central)
	require.Error(t, err)
	assert.True(t, apierr.IsCode(err, apierr.CodeCoordinate))
}

func TestTransformWithMetadata(t *testing.T) {
	e := newTestEngine()

	r, err := e.TransformWithMetadata(seoulCityHall, WGS84, GRS80Central)
	require.NoError(t, err)
	assert.Equal(t, WGS84, r.Input.System)
	assert.Equal(t, seoulCityHall, r.Input.Point)
	assert.Equal(t, GRS80Central, r.Output.System)
	assert.Equal(t, "<1m", r.Accuracy)
	assert.InDelta(t, 198056.37, r.Output.Point.X, 1.0)
}

func TestNormalize(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	t.Run("xy form", func(t *testing.T) {
		p, err := Normalize(Input{X: f(1), Y: f(2)})
		require.NoError(t, err)
		assert.Equal(t, Point{X: 1, Y: 2}, p)
	})

	t.Run("geographic form", func(t *testing.T) {
		p, err := Normalize(Input{Longitude: f(126.978), Latitude: f(37.5665)})
		require.NoError(t, err)
		assert.Equal(t, Point{X: 126.978, Y: 37.5665}, p)
	})

	t.Run("incomplete", func(t *testing.T) {
		_, err := Normalize(Input{X: f(1)})
		require.Error(t, err)
		assert.True(t, apierr.IsCode(err, apierr.CodeCoordinate))
	})
}

func TestSystemsInventory(t *testing.T) {
	infos := Systems()
	require.Len(t, infos, 7)
	assert.Equal(t, 4326, infos[0].EPSG)
	assert.Equal(t, UnitDegree, infos[0].Unit)
	for _, info := range infos[1:] {
		assert.Equal(t, UnitMeter, info.Unit)
		assert.NotEmpty(t, info.Proj)
	}
}
