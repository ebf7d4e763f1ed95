package coord

import "math"

// Ellipsoid is a reference ellipsoid given by its semi-major axis (m)
// and inverse flattening.
type Ellipsoid struct {
	Name string
	A    float64
	InvF float64
}

var (
	ellipsoidWGS84  = Ellipsoid{Name: "WGS84", A: 6378137.0, InvF: 298.257223563}
	ellipsoidGRS80  = Ellipsoid{Name: "GRS80", A: 6378137.0, InvF: 298.257222101}
	ellipsoidBessel = Ellipsoid{Name: "bessel", A: 6377397.155, InvF: 299.1528128}
)

// e2 returns the first eccentricity squared.
func (e Ellipsoid) e2() float64 {
	f := 1 / e.InvF
	return f * (2 - f)
}

// ep2 returns the second eccentricity squared.
func (e Ellipsoid) ep2() float64 {
	e2 := e.e2()
	return e2 / (1 - e2)
}

// Helmert holds a 7-parameter datum shift in the position-vector
// convention: translations in meters, rotations in arc-seconds, scale in
// parts per million.
type Helmert struct {
	Tx, Ty, Tz float64
	Rx, Ry, Rz float64
	S          float64
}

const arcSecToRad = math.Pi / (180 * 3600)

// Apply shifts an ECEF position from the local datum to WGS84.
func (h Helmert) Apply(x, y, z float64) (float64, float64, float64) {
	rx := h.Rx * arcSecToRad
	ry := h.Ry * arcSecToRad
	rz := h.Rz * arcSecToRad
	s := 1 + h.S*1e-6

	xo := h.Tx + s*(x-rz*y+ry*z)
	yo := h.Ty + s*(rz*x+y-rx*z)
	zo := h.Tz + s*(-ry*x+rx*y+z)
	return xo, yo, zo
}

// Inverse shifts an ECEF position from WGS84 back to the local datum
// by solving the forward system exactly. The forward step is
// out = T + s*(I+K)*in with K the rotation cross-product matrix, and
// (I+K) inverts in closed form as (I - K + kk^T)/(1 + |k|^2).
func (h Helmert) Inverse(x, y, z float64) (float64, float64, float64) {
	rx := h.Rx * arcSecToRad
	ry := h.Ry * arcSecToRad
	rz := h.Rz * arcSecToRad
	s := 1 + h.S*1e-6

	bx := (x - h.Tx) / s
	by := (y - h.Ty) / s
	bz := (z - h.Tz) / s

	det := 1 + rx*rx + ry*ry + rz*rz
	ix := ((1+rx*rx)*bx + (rz+rx*ry)*by + (rx*rz-ry)*bz) / det
	iy := ((rx*ry-rz)*bx + (1+ry*ry)*by + (ry*rz+rx)*bz) / det
	iz := ((rx*rz+ry)*bx + (ry*rz-rx)*by + (1+rz*rz)*bz) / det
	return ix, iy, iz
}

// geodeticToECEF converts geodetic coordinates (radians, ellipsoidal
// height in meters) to earth-centered cartesian.
func geodeticToECEF(e Ellipsoid, lat, lon, h float64) (float64, float64, float64) {
	e2 := e.e2()
	sinLat := math.Sin(lat)
	n := e.A / math.Sqrt(1-e2*sinLat*sinLat)

	x := (n + h) * math.Cos(lat) * math.Cos(lon)
	y := (n + h) * math.Cos(lat) * math.Sin(lon)
	z := (n*(1-e2) + h) * sinLat
	return x, y, z
}

// ecefToGeodetic converts earth-centered cartesian to geodetic
// coordinates (radians) by Bowring's iteration. Converges to
// sub-millimeter in a handful of rounds.
func ecefToGeodetic(e Ellipsoid, x, y, z float64) (lat, lon, h float64) {
	e2 := e.e2()
	p := math.Hypot(x, y)
	lon = math.Atan2(y, x)

	if p < 1e-9 {
		// On the polar axis.
		lat = math.Copysign(math.Pi/2, z)
		h = math.Abs(z) - e.A*math.Sqrt(1-e2)
		return lat, lon, h
	}

	lat = math.Atan2(z, p*(1-e2))
	for i := 0; i < 8; i++ {
		sinLat := math.Sin(lat)
		n := e.A / math.Sqrt(1-e2*sinLat*sinLat)
		h = p/math.Cos(lat) - n
		next := math.Atan2(z, p*(1-e2*n/(n+h)))
		if math.Abs(next-lat) < 1e-13 {
			lat = next
			break
		}
		lat = next
	}
	return lat, lon, h
}

// meridionalArc returns the distance along the meridian from the equator
// to latitude lat (radians), by the standard fourth-order series.
func meridionalArc(e Ellipsoid, lat float64) float64 {
	e2 := e.e2()
	e4 := e2 * e2
	e6 := e4 * e2

	return e.A * ((1-e2/4-3*e4/64-5*e6/256)*lat -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*lat) +
		(15*e4/256+45*e6/1024)*math.Sin(4*lat) -
		(35*e6/3072)*math.Sin(6*lat))
}

// tmForward projects geodetic coordinates (radians) onto a
// transverse-Mercator grid (Redfearn series).
func tmForward(s *System, lat, lon float64) (x, y float64) {
	e := s.Ellipsoid
	e2 := e.e2()
	ep2 := e.ep2()
	lat0 := s.LatOrigin * math.Pi / 180
	lon0 := s.LonOrigin * math.Pi / 180
	k0 := s.Scale

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	tanLat := math.Tan(lat)

	n := e.A / math.Sqrt(1-e2*sinLat*sinLat)
	t := tanLat * tanLat
	c := ep2 * cosLat * cosLat
	a := cosLat * (lon - lon0)
	a2 := a * a

	m := meridionalArc(e, lat)
	m0 := meridionalArc(e, lat0)

	x = s.FalseEasting + k0*n*(a+(1-t+c)*a*a2/6+
		(5-18*t+t*t+72*c-58*ep2)*a*a2*a2/120)
	y = s.FalseNorthing + k0*(m-m0+n*tanLat*(a2/2+
		(5-t+9*c+4*c*c)*a2*a2/24+
		(61-58*t+t*t+600*c-330*ep2)*a2*a2*a2/720))
	return x, y
}

// tmInverse unprojects transverse-Mercator grid coordinates back to
// geodetic coordinates (radians) via the footpoint latitude.
func tmInverse(s *System, x, y float64) (lat, lon float64) {
	e := s.Ellipsoid
	e2 := e.e2()
	ep2 := e.ep2()
	lat0 := s.LatOrigin * math.Pi / 180
	lon0 := s.LonOrigin * math.Pi / 180
	k0 := s.Scale

	m0 := meridionalArc(e, lat0)
	m := m0 + (y-s.FalseNorthing)/k0

	// Footpoint latitude by the rectifying-latitude series.
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	mu := m / (e.A * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	fp := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinFp := math.Sin(fp)
	cosFp := math.Cos(fp)
	tanFp := math.Tan(fp)

	c1 := ep2 * cosFp * cosFp
	t1 := tanFp * tanFp
	n1 := e.A / math.Sqrt(1-e2*sinFp*sinFp)
	r1 := n1 * (1 - e2) / (1 - e2*sinFp*sinFp)
	d := (x - s.FalseEasting) / (n1 * k0)
	d2 := d * d

	lat = fp - (n1*tanFp/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d2*d2/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d2*d2*d2/720)
	lon = lon0 + (d-(1+2*t1+c1)*d*d2/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d*d2*d2/120)/cosFp
	return lat, lon
}
