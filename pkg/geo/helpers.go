package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geos"
)

// toGEOS converts an orb geometry into a GEOS geometry owned by gctx.
func toGEOS(gctx *geos.Context, g orb.Geometry) (*geos.Geom, error) {
	switch v := g.(type) {
	case orb.Bound:
		g = v.ToPolygon()
	case orb.Ring:
		g = orb.Polygon{v}
	}
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", ErrInvalidGeometry, g.GeoJSONType(), err)
	}
	gg, err := gctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidGeometry, g.GeoJSONType(), err)
	}
	return gg, nil
}

// fromGEOS converts a GEOS geometry back into orb.
func fromGEOS(g *geos.Geom) (orb.Geometry, error) {
	if g.IsEmpty() {
		return orb.Collection{}, nil
	}
	out, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return out, nil
}

// Disjoint reports whether a and b share no point. Both must be in the same
// CRS. Collections are tested part by part, so a boundary touch counts as an
// intersection.
func Disjoint(a, b orb.Geometry) (bool, error) {
	if err := Validate(a); err != nil {
		return false, err
	}
	if err := Validate(b); err != nil {
		return false, err
	}

	gctx := geos.NewContext()
	bParts := make([]*geos.Geom, 0, 1)
	for _, pb := range Parts(b) {
		gb, err := toGEOS(gctx, pb)
		if err != nil {
			return false, err
		}
		bParts = append(bParts, gb)
	}

	for _, pa := range Parts(a) {
		if !pa.Bound().Intersects(b.Bound()) {
			continue
		}
		ga, err := toGEOS(gctx, pa)
		if err != nil {
			return false, err
		}
		for _, gb := range bParts {
			if !ga.Disjoint(gb) {
				return false, nil
			}
		}
	}
	return true, nil
}

// Center returns a representative point of g used for single-pixel feature
// info requests: an interior point for polygons, the midpoint along lines and
// the first vertex of multi-points.
func Center(g orb.Geometry) (orb.Point, bool) {
	switch g := g.(type) {
	case orb.Point:
		return g, true
	case orb.MultiPoint:
		if len(g) == 0 {
			return orb.Point{}, false
		}
		return g[0], true
	case orb.LineString:
		return alongLine(g, 0.5)
	case orb.MultiLineString:
		if len(g) == 0 {
			return orb.Point{}, false
		}
		return alongLine(g[0], 0.5)
	case orb.Polygon, orb.MultiPolygon:
		return interiorPoint(g)
	case orb.Bound:
		return g.Center(), true
	case orb.Ring:
		return interiorPoint(orb.Polygon{g})
	case orb.Collection:
		if len(g) == 0 {
			return orb.Point{}, false
		}
		return Center(g[0])
	}
	return orb.Point{}, false
}

func interiorPoint(g orb.Geometry) (orb.Point, bool) {
	if mp, ok := g.(orb.MultiPolygon); ok {
		if len(mp) == 0 {
			return orb.Point{}, false
		}
		g = mp[0]
	}
	gctx := geos.NewContext()
	gg, err := toGEOS(gctx, g)
	if err != nil {
		return orb.Point{}, false
	}
	pt, err := fromGEOS(gg.PointOnSurface())
	if err != nil {
		return orb.Point{}, false
	}
	p, ok := pt.(orb.Point)
	return p, ok
}

// alongLine returns the point at the given fraction of the line's length.
func alongLine(ls orb.LineString, fraction float64) (orb.Point, bool) {
	switch len(ls) {
	case 0:
		return orb.Point{}, false
	case 1:
		return ls[0], true
	}
	target := planar.Length(ls) * fraction
	walked := 0.0
	for i := 1; i < len(ls); i++ {
		seg := planar.Distance(ls[i-1], ls[i])
		if walked+seg >= target && seg > 0 {
			t := (target - walked) / seg
			return orb.Point{
				ls[i-1][0] + t*(ls[i][0]-ls[i-1][0]),
				ls[i-1][1] + t*(ls[i][1]-ls[i-1][1]),
			}, true
		}
		walked += seg
	}
	return ls[len(ls)-1], true
}
