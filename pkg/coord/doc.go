/*
Package coord converts coordinates between the seven Korean systems.

The engine is self-contained: a closed, table-driven projection registry
plus transverse-Mercator math and a 7-parameter datum shift. Nothing here
touches the network or the cache — pure functions over points.

# Supported Systems

	Code            EPSG   Unit    Grid (lon₀ / k / FE / FN)
	WGS84           4326   degree  —
	GRS80_CENTRAL   5186   meter   127    / 1.0    / 200000  / 600000
	GRS80_WEST      5185   meter   125    / 1.0    / 200000  / 600000
	GRS80_EAST      5187   meter   129    / 1.0    / 200000  / 600000
	BESSEL_CENTRAL  2097   meter   127°00′10.405″ / 1.0 / 200000 / 500000
	KATEC           5178   meter   128    / 0.9999 / 200000  / 500000
	UTM_K           5179   meter   127.5  / 0.9996 / 1000000 / 2000000

All grids use latitude origin 38°N. The GRS80 grids and UTM-K sit on the
GRS80 ellipsoid, datum-identical to WGS84 at this accuracy. The Bessel
grids carry the Korean 7-parameter shift
(−115.80, 474.99, 674.11, 1.16, −2.31, −1.63, 6.43), position-vector
convention.

# Transform Pipeline

	source grid ──tmInverse──► geodetic(source datum)
	            ──ECEF + Helmert (Bessel only)──► geodetic(WGS84)
	            ──ECEF + inverse Helmert (Bessel only)──► geodetic(target datum)
	            ──tmForward──► target grid

Degree endpoints skip the projection step. Same-system transforms return
the point unchanged. Accuracy is under one meter for any same-datum pair
within the Korean range, and WGS84 round trips hold to six decimal
places.

# Validation and Detection

Definition-range violations (longitude beyond ±180, non-finite projected
coordinates) are COORDINATE_ERROR. Points outside the expected Korean
extent only warn, and the warning can be switched off via
STRICT_KOREA_BOUNDS=false. DetectSystem returns the first system whose
range covers a point — WGS84 by its degree box, then each projected
system in declaration order, so systems with identical boxes resolve to
the first.

# Usage

	engine := coord.New(coord.Options{
		StrictKoreaBounds: true,
		Logger:            log.WithComponent("coord"),
	})

	p, err := engine.Transform(
		coord.Point{X: 126.9780, Y: 37.5665},
		coord.WGS84, coord.GRS80Central,
	)
	// p.X ≈ 198056, p.Y ≈ 551885

TransformBatch prepares the converter once and applies it to up to the
gateway's batch cap in a single pass; TransformWithMetadata wraps the
result with both endpoints and the accuracy tag.
*/
package coord
