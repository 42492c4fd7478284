package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Kind identifies the primitive drawn by the user.
type Kind string

const (
	KindPoint      Kind = "point"
	KindBox        Kind = "box"
	KindCircle     Kind = "circle"
	KindPolygon    Kind = "polygon"
	KindLine       Kind = "line"
	KindCollection Kind = "collection"
)

// DefaultCircleSegments matches the number of sides used when a drawn circle
// is turned into a polygon.
const DefaultCircleSegments = 32

// Circle is a centre and radius in map units. There is no circle primitive in
// the spatial library so a Circle is always converted with Normalize first.
type Circle struct {
	Center orb.Point
	Radius float64
}

// QueryGeometry is the region drawn for one selection gesture.
type QueryGeometry struct {
	Kind     Kind
	Geometry orb.Geometry // unused for KindCircle
	Circle   Circle
}

// PointQuery builds a click query.
func PointQuery(p orb.Point) QueryGeometry {
	return QueryGeometry{Kind: KindPoint, Geometry: p}
}

// BoxQuery builds a rectangular query.
func BoxQuery(b orb.Bound) QueryGeometry {
	return QueryGeometry{Kind: KindBox, Geometry: b.ToPolygon()}
}

// CircleQuery builds a circular query.
func CircleQuery(center orb.Point, radius float64) QueryGeometry {
	return QueryGeometry{Kind: KindCircle, Circle: Circle{Center: center, Radius: radius}}
}

// PolygonQuery builds a freehand polygon query.
func PolygonQuery(p orb.Polygon) QueryGeometry {
	return QueryGeometry{Kind: KindPolygon, Geometry: p}
}

// LineQuery builds a line query.
func LineQuery(ls orb.LineString) QueryGeometry {
	return QueryGeometry{Kind: KindLine, Geometry: ls}
}

// CollectionQuery builds a query from several parts whose extents may be disjoint.
func CollectionQuery(c orb.Collection) QueryGeometry {
	return QueryGeometry{Kind: KindCollection, Geometry: c}
}

// QueryFromGeometry wraps an arbitrary geometry, picking the kind from its type.
func QueryFromGeometry(g orb.Geometry) QueryGeometry {
	switch g := g.(type) {
	case orb.Point:
		return PointQuery(g)
	case orb.LineString:
		return LineQuery(g)
	case orb.Bound:
		return BoxQuery(g)
	case orb.Collection:
		return CollectionQuery(g)
	case orb.Ring:
		return PolygonQuery(orb.Polygon{g})
	}
	return QueryGeometry{Kind: KindPolygon, Geometry: g}
}

// Normalize converts q into a standard geometry. Circles become polygons and
// everything else is cloned, so callers never observe mutation of their input.
func Normalize(q QueryGeometry) (orb.Geometry, error) {
	return NormalizeSegments(q, DefaultCircleSegments)
}

// NormalizeSegments is Normalize with an explicit circle resolution.
func NormalizeSegments(q QueryGeometry, segments int) (orb.Geometry, error) {
	if q.Kind == KindCircle {
		c := q.Circle
		if math.IsNaN(c.Radius) || math.IsInf(c.Radius, 0) || c.Radius < 0 {
			return nil, fmt.Errorf("%w: circle radius %v", ErrInvalidGeometry, c.Radius)
		}
		poly := CirclePolygon(c.Center, c.Radius, segments)
		if err := Validate(poly); err != nil {
			return nil, err
		}
		return poly, nil
	}

	if err := Validate(q.Geometry); err != nil {
		return nil, err
	}

	switch g := q.Geometry.(type) {
	case orb.Bound:
		return g.ToPolygon(), nil
	case orb.Ring:
		return orb.Polygon{g.Clone()}, nil
	}
	return orb.Clone(q.Geometry), nil
}

// CirclePolygon approximates a circle by a closed regular polygon.
func CirclePolygon(center orb.Point, radius float64, segments int) orb.Polygon {
	if segments < 3 {
		segments = DefaultCircleSegments
	}
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		angle := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, orb.Point{
			center[0] + radius*math.Cos(angle),
			center[1] + radius*math.Sin(angle),
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Extents returns the bounding extents used to retrieve candidates for g.
// Collections yield one extent per part so that scattered parts do not pull
// in everything between them.
func Extents(g orb.Geometry) []orb.Bound {
	c, ok := g.(orb.Collection)
	if !ok {
		return []orb.Bound{g.Bound()}
	}
	var out []orb.Bound
	for _, part := range c {
		out = append(out, Extents(part)...)
	}
	return out
}

// Parts flattens nested collections into their non-collection members.
func Parts(g orb.Geometry) []orb.Geometry {
	c, ok := g.(orb.Collection)
	if !ok {
		return []orb.Geometry{g}
	}
	var out []orb.Geometry
	for _, part := range c {
		out = append(out, Parts(part)...)
	}
	return out
}

// IsPointOrLine reports whether every part of g is zero- or one-dimensional.
func IsPointOrLine(g orb.Geometry) bool {
	parts := Parts(g)
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if p.Dimensions() > 1 {
			return false
		}
	}
	return true
}
