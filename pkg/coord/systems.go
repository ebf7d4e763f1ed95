package coord

import "fmt"

// Code names one of the seven supported coordinate systems. The set is
// closed and table-driven; there is no runtime registration.
type Code string

const (
	WGS84         Code = "WGS84"
	GRS80Central  Code = "GRS80_CENTRAL"
	GRS80West     Code = "GRS80_WEST"
	GRS80East     Code = "GRS80_EAST"
	BesselCentral Code = "BESSEL_CENTRAL"
	KATEC         Code = "KATEC"
	UTMK          Code = "UTM_K"
)

// Unit is the measurement unit of a system's coordinates.
type Unit string

const (
	UnitDegree Unit = "degree"
	UnitMeter  Unit = "meter"
)

// Range is an inclusive numeric box used for validation and
// autodetection.
type Range struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// Contains reports whether a point lies inside the box.
func (r Range) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// System is one projection definition. For degree systems the projection
// parameters are unused; for projected systems they parameterize a
// transverse-Mercator grid, optionally on a shifted datum.
type System struct {
	Code          Code
	EPSG          int
	Proj          string
	Unit          Unit
	Ellipsoid     Ellipsoid
	LatOrigin     float64 // degrees
	LonOrigin     float64 // degrees
	Scale         float64
	FalseEasting  float64
	FalseNorthing float64
	Shift         *Helmert // datum shift to WGS84; nil when none
	Bounds        Range
}

// besselToWGS84 is the 7-parameter shift (position vector convention)
// between the Korean Bessel 1841 datum and WGS84.
var besselToWGS84 = Helmert{
	Tx: -115.80, Ty: 474.99, Tz: 674.11,
	Rx: 1.16, Ry: -2.31, Rz: -1.63,
	S: 6.43,
}

// systems lists the seven definitions in detection preference order:
// WGS84 first by its degree range, then each projected system by its
// bounded box.
var systems = []System{
	{
		Code:      WGS84,
		EPSG:      4326,
		Proj:      "+proj=longlat +datum=WGS84 +no_defs",
		Unit:      UnitDegree,
		Ellipsoid: ellipsoidWGS84,
		Bounds:    Range{MinX: -180, MaxX: 180, MinY: -90, MaxY: 90},
	},
	{
		Code:          GRS80Central,
		EPSG:          5186,
		Proj:          "+proj=tmerc +lat_0=38 +lon_0=127 +k=1 +x_0=200000 +y_0=600000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
		Unit:          UnitMeter,
		Ellipsoid:     ellipsoidGRS80,
		LatOrigin:     38,
		LonOrigin:     127,
		Scale:         1.0,
		FalseEasting:  200000,
		FalseNorthing: 600000,
		Bounds:        Range{MinX: 100000, MaxX: 300000, MinY: 400000, MaxY: 800000},
	},
	{
		Code:          GRS80West,
		EPSG:          5185,
		Proj:          "+proj=tmerc +lat_0=38 +lon_0=125 +k=1 +x_0=200000 +y_0=600000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
		Unit:          UnitMeter,
		Ellipsoid:     ellipsoidGRS80,
		LatOrigin:     38,
		LonOrigin:     125,
		Scale:         1.0,
		FalseEasting:  200000,
		FalseNorthing: 600000,
		Bounds:        Range{MinX: 100000, MaxX: 300000, MinY: 400000, MaxY: 800000},
	},
	{
		Code:          GRS80East,
		EPSG:          5187,
		Proj:          "+proj=tmerc +lat_0=38 +lon_0=129 +k=1 +x_0=200000 +y_0=600000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
		Unit:          UnitMeter,
		Ellipsoid:     ellipsoidGRS80,
		LatOrigin:     38,
		LonOrigin:     129,
		Scale:         1.0,
		FalseEasting:  200000,
		FalseNorthing: 600000,
		Bounds:        Range{MinX: 100000, MaxX: 300000, MinY: 400000, MaxY: 800000},
	},
	{
		Code:          BesselCentral,
		EPSG:          2097,
		Proj:          "+proj=tmerc +lat_0=38 +lon_0=127.0028902777778 +k=1 +x_0=200000 +y_0=500000 +ellps=bessel +towgs84=-115.80,474.99,674.11,1.16,-2.31,-1.63,6.43 +units=m +no_defs",
		Unit:          UnitMeter,
		Ellipsoid:     ellipsoidBessel,
		LatOrigin:     38,
		LonOrigin:     127.0028902777778, // 127°00'10.405"
		Scale:         1.0,
		FalseEasting:  200000,
		FalseNorthing: 500000,
		Shift:         &besselToWGS84,
		Bounds:        Range{MinX: 100000, MaxX: 300000, MinY: 300000, MaxY: 700000},
	},
	{
		Code:          KATEC,
		EPSG:          5178,
		Proj:          "+proj=tmerc +lat_0=38 +lon_0=128 +k=0.9999 +x_0=200000 +y_0=500000 +ellps=bessel +towgs84=-115.80,474.99,674.11,1.16,-2.31,-1.63,6.43 +units=m +no_defs",
		Unit:          UnitMeter,
		Ellipsoid:     ellipsoidBessel,
		LatOrigin:     38,
		LonOrigin:     128,
		Scale:         0.9999,
		FalseEasting:  200000,
		FalseNorthing: 500000,
		Shift:         &besselToWGS84,
		Bounds:        Range{MinX: 100000, MaxX: 300000, MinY: 300000, MaxY: 700000},
	},
	{
		Code:          UTMK,
		EPSG:          5179,
		Proj:          "+proj=tmerc +lat_0=38 +lon_0=127.5 +k=0.9996 +x_0=1000000 +y_0=2000000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
		Unit:          UnitMeter,
		Ellipsoid:     ellipsoidGRS80,
		LatOrigin:     38,
		LonOrigin:     127.5,
		Scale:         0.9996,
		FalseEasting:  1000000,
		FalseNorthing: 2000000,
		Bounds:        Range{MinX: 900000, MaxX: 1100000, MinY: 1800000, MaxY: 2200000},
	},
}

var systemsByCode = func() map[Code]*System {
	m := make(map[Code]*System, len(systems))
	for i := range systems {
		m[systems[i].Code] = &systems[i]
	}
	return m
}()

// Lookup returns the definition for a code.
func Lookup(code Code) (*System, error) {
	if s, ok := systemsByCode[code]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("unknown coordinate system %q", code)
}

// SupportedSystems returns the seven codes in declaration order.
func SupportedSystems() []Code {
	out := make([]Code, len(systems))
	for i, s := range systems {
		out[i] = s.Code
	}
	return out
}

// SystemInfo is the wire description of one system for the inventory
// endpoint.
type SystemInfo struct {
	Code   Code   `json:"code"`
	EPSG   int    `json:"epsg"`
	Unit   Unit   `json:"unit"`
	Proj   string `json:"proj"`
	Bounds Range  `json:"bounds"`
}

// Systems returns wire descriptions of every definition.
func Systems() []SystemInfo {
	out := make([]SystemInfo, len(systems))
	for i, s := range systems {
		out[i] = SystemInfo{Code: s.Code, EPSG: s.EPSG, Unit: s.Unit, Proj: s.Proj, Bounds: s.Bounds}
	}
	return out
}
