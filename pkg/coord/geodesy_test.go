package coord

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestECEFRoundTrip(t *testing.T) {
	for _, e := range []Ellipsoid{ellipsoidWGS84, ellipsoidGRS80, ellipsoidBessel} {
		lat := 37.5665 * math.Pi / 180
		lon := 126.9780 * math.Pi / 180

		x, y, z := geodeticToECEF(e, lat, lon, 0)
		lat2, lon2, h2 := ecefToGeodetic(e, x, y, z)

		assert.InDelta(t, lat, lat2, 1e-11, "%s latitude", e.Name)
		assert.InDelta(t, lon, lon2, 1e-11, "%s longitude", e.Name)
		assert.InDelta(t, 0, h2, 1e-3, "%s height", e.Name)
	}
}

func TestHelmertRoundTrip(t *testing.T) {
	lat := 37.5665 * math.Pi / 180
	lon := 126.9780 * math.Pi / 180

	x, y, z := geodeticToECEF(ellipsoidBessel, lat, lon, 0)
	fx, fy, fz := besselToWGS84.Apply(x, y, z)
	bx, by, bz := besselToWGS84.Inverse(fx, fy, fz)

	// The inverse solves the forward system, so the round trip holds
	// to floating-point precision, not just to the small-angle bound.
	assert.InDelta(t, x, bx, 1e-6)
	assert.InDelta(t, y, by, 1e-6)
	assert.InDelta(t, z, bz, 1e-6)
}

func TestHelmertShiftMagnitude(t *testing.T) {
	// The Korean Bessel→WGS84 shift moves positions by hundreds of
	// meters, dominated by the translation vector.
	lat := 37.0 * math.Pi / 180
	lon := 127.0 * math.Pi / 180

	x, y, z := geodeticToECEF(ellipsoidBessel, lat, lon, 0)
	fx, fy, fz := besselToWGS84.Apply(x, y, z)

	d := math.Sqrt((fx-x)*(fx-x) + (fy-y)*(fy-y) + (fz-z)*(fz-z))
	assert.Greater(t, d, 100.0)
	assert.Less(t, d, 1500.0)
}

func TestMeridionalArc(t *testing.T) {
	// A quarter meridian on WGS84 is very close to 10,001,966 m.
	quarter := meridionalArc(ellipsoidWGS84, math.Pi/2)
	assert.InDelta(t, 10001965.7, quarter, 50)

	assert.Zero(t, meridionalArc(ellipsoidWGS84, 0))
}

func TestTMGridOriginMapsToFalseOrigin(t *testing.T) {
	s, err := Lookup(GRS80Central)
	require.NoError(t, err)

	x, y := tmForward(s, s.LatOrigin*math.Pi/180, s.LonOrigin*math.Pi/180)
	assert.InDelta(t, s.FalseEasting, x, 1e-6)
	assert.InDelta(t, s.FalseNorthing, y, 1e-6)
}

func TestTMInverseOfForward(t *testing.T) {
	s, err := Lookup(UTMK)
	require.NoError(t, err)

	lat := 35.1151 * math.Pi / 180
	lon := 129.0415 * math.Pi / 180

	x, y := tmForward(s, lat, lon)
	lat2, lon2 := tmInverse(s, x, y)

	assert.InDelta(t, lat, lat2, 1e-10)
	assert.InDelta(t, lon, lon2, 1e-10)
}
