package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius is the mean earth radius in meters used for all geodesic math.
const EarthRadius = 6371008.8

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Distance calculates the Haversine distance between two lon/lat points in meters.
func Distance(p1, p2 orb.Point) float64 {
	dLat := (p2[1] - p1[1]) * degToRad
	dLon := (p2[0] - p1[0]) * degToRad
	lat1 := p1[1] * degToRad
	lat2 := p2[1] * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// MapDistance returns the ground distance in meters between two points given
// in projection p.
func MapDistance(a, b orb.Point, p Projection) (float64, error) {
	wa, err := ToWGS84(a, p)
	if err != nil {
		return 0, err
	}
	wb, err := ToWGS84(b, p)
	if err != nil {
		return 0, err
	}
	return Distance(wa.(orb.Point), wb.(orb.Point)), nil
}

// azimuthal is a spherical azimuthal equidistant projection centred on a
// lon/lat point. Distances from the centre are preserved, which makes it a
// suitable plane for metric buffering of small geometries.
type azimuthal struct {
	lon0, sinLat0, cosLat0 float64
}

func newAzimuthal(center orb.Point) azimuthal {
	lat0 := center[1] * degToRad
	return azimuthal{
		lon0:    center[0] * degToRad,
		sinLat0: math.Sin(lat0),
		cosLat0: math.Cos(lat0),
	}
}

// forward maps lon/lat degrees to planar meters.
func (a azimuthal) forward(p orb.Point) orb.Point {
	lat := p[1] * degToRad
	dLon := p[0]*degToRad - a.lon0
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	cosDLon := math.Cos(dLon)

	cosC := a.sinLat0*sinLat + a.cosLat0*cosLat*cosDLon
	cosC = math.Max(-1, math.Min(1, cosC))
	c := math.Acos(cosC)

	k := 1.0
	if c != 0 {
		k = c / math.Sin(c)
	}

	x := EarthRadius * k * cosLat * math.Sin(dLon)
	y := EarthRadius * k * (a.cosLat0*sinLat - a.sinLat0*cosLat*cosDLon)
	return orb.Point{x, y}
}

// inverse maps planar meters back to lon/lat degrees.
func (a azimuthal) inverse(p orb.Point) orb.Point {
	rho := math.Hypot(p[0], p[1])
	if rho == 0 {
		return orb.Point{a.lon0 * radToDeg, math.Asin(a.sinLat0) * radToDeg}
	}

	c := rho / EarthRadius
	sinC, cosC := math.Sin(c), math.Cos(c)

	lat := math.Asin(cosC*a.sinLat0 + p[1]*sinC*a.cosLat0/rho)
	lon := a.lon0 + math.Atan2(p[0]*sinC, rho*a.cosLat0*cosC-p[1]*a.sinLat0*sinC)

	return orb.Point{normalizeLon(lon * radToDeg), lat * radToDeg}
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
