package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Projection is an EPSG code identifying the working CRS of the map.
type Projection string

// Supported projections.
const (
	WebMercator Projection = "EPSG:3857"
	WGS84       Projection = "EPSG:4326"
)

var (
	// ErrInvalidGeometry is returned for nil, empty or non-finite geometries.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrUnsupportedProjection is returned for a CRS that cannot be reprojected.
	ErrUnsupportedProjection = errors.New("unsupported projection")
)

// aliases commonly used by map services for spherical mercator.
var mercatorAliases = map[Projection]bool{
	WebMercator:   true,
	"EPSG:900913": true,
	"EPSG:102100": true,
	"EPSG:102113": true,
}

// Canonical returns the canonical code for aliases of the supported projections.
func (p Projection) Canonical() Projection {
	if mercatorAliases[p] {
		return WebMercator
	}
	if p == "CRS:84" {
		return WGS84
	}
	return p
}

// Validate reports whether the projection is supported.
func (p Projection) Validate() error {
	switch p.Canonical() {
	case WebMercator, WGS84:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedProjection, string(p))
}

// ToWGS84 returns a copy of g reprojected from p to EPSG:4326.
// The input geometry is never modified.
func ToWGS84(g orb.Geometry, p Projection) (orb.Geometry, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	switch p.Canonical() {
	case WGS84:
		return orb.Clone(g), nil
	case WebMercator:
		return project.Geometry(orb.Clone(g), project.Mercator.ToWGS84), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedProjection, string(p))
}

// FromWGS84 returns a copy of g reprojected from EPSG:4326 to p.
func FromWGS84(g orb.Geometry, p Projection) (orb.Geometry, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	switch p.Canonical() {
	case WGS84:
		return orb.Clone(g), nil
	case WebMercator:
		return project.Geometry(orb.Clone(g), project.WGS84.ToMercator), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedProjection, string(p))
}

// Validate checks that g is non-nil and every coordinate is finite.
func Validate(g orb.Geometry) error {
	if g == nil {
		return fmt.Errorf("%w: nil geometry", ErrInvalidGeometry)
	}
	bad := false
	walkPoints(g, func(p orb.Point) {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			bad = true
		}
	})
	if bad {
		return fmt.Errorf("%w: non-finite coordinate in %s", ErrInvalidGeometry, g.GeoJSONType())
	}
	return nil
}

// walkPoints calls fn for every vertex of g.
func walkPoints(g orb.Geometry, fn func(orb.Point)) {
	switch g := g.(type) {
	case orb.Point:
		fn(g)
	case orb.MultiPoint:
		for _, p := range g {
			fn(p)
		}
	case orb.LineString:
		for _, p := range g {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			walkPoints(ls, fn)
		}
	case orb.Ring:
		for _, p := range g {
			fn(p)
		}
	case orb.Polygon:
		for _, r := range g {
			walkPoints(r, fn)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			walkPoints(p, fn)
		}
	case orb.Collection:
		for _, c := range g {
			walkPoints(c, fn)
		}
	case orb.Bound:
		fn(g.Min)
		fn(g.Max)
	}
}

// mapPoints returns g with every vertex replaced by fn(vertex). Slices are
// modified in place, callers pass a clone.
func mapPoints(g orb.Geometry, fn func(orb.Point) orb.Point) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		return fn(g)
	case orb.MultiPoint:
		for i := range g {
			g[i] = fn(g[i])
		}
		return g
	case orb.LineString:
		for i := range g {
			g[i] = fn(g[i])
		}
		return g
	case orb.MultiLineString:
		for i := range g {
			g[i] = mapPoints(g[i], fn).(orb.LineString)
		}
		return g
	case orb.Ring:
		for i := range g {
			g[i] = fn(g[i])
		}
		return g
	case orb.Polygon:
		for i := range g {
			g[i] = mapPoints(g[i], fn).(orb.Ring)
		}
		return g
	case orb.MultiPolygon:
		for i := range g {
			g[i] = mapPoints(g[i], fn).(orb.Polygon)
		}
		return g
	case orb.Collection:
		for i := range g {
			g[i] = mapPoints(g[i], fn)
		}
		return g
	case orb.Bound:
		return orb.Bound{Min: fn(g.Min), Max: fn(g.Max)}
	}
	return g
}
