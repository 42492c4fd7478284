package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-geos"
)

// bufferQuadSegments is the number of segments used per quarter circle.
const bufferQuadSegments = 8

// Buffer dilates g (in projection p) by radiusMeters and returns the result
// wrapped in a single feature, in projection p.
//
// The geometry is taken to EPSG:4326, then to an azimuthal equidistant plane
// centred on it where the metric buffer is applied, and back again. A zero
// radius returns a clone of g without buffering: buffering a collection by
// zero drops its points and lines. A collection input yields a collection of
// buffered parts.
func Buffer(g orb.Geometry, radiusMeters float64, p Projection) (*geojson.Feature, error) {
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) {
		return nil, fmt.Errorf("%w: buffer radius %v", ErrInvalidGeometry, radiusMeters)
	}
	if err := Validate(g); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if radiusMeters == 0 {
		return geojson.NewFeature(orb.Clone(g)), nil
	}

	wgs, err := ToWGS84(g, p)
	if err != nil {
		return nil, err
	}

	buffered, err := bufferWGS84(wgs, radiusMeters)
	if err != nil {
		return nil, err
	}

	out, err := FromWGS84(buffered, p)
	if err != nil {
		return nil, err
	}
	return geojson.NewFeature(out), nil
}

func bufferWGS84(g orb.Geometry, radius float64) (orb.Geometry, error) {
	if c, ok := g.(orb.Collection); ok {
		parts := make(orb.Collection, 0, len(c))
		for _, member := range c {
			b, err := bufferWGS84(member, radius)
			if err != nil {
				return nil, err
			}
			if isEmpty(b) {
				continue
			}
			parts = append(parts, b)
		}
		return parts, nil
	}

	proj := newAzimuthal(g.Bound().Center())
	planarGeom := mapPoints(orb.Clone(g), proj.forward)

	gctx := geos.NewContext()
	gg, err := toGEOS(gctx, planarGeom)
	if err != nil {
		return nil, err
	}
	out, err := fromGEOS(gg.Buffer(radius, bufferQuadSegments))
	if err != nil {
		return nil, err
	}
	return mapPoints(out, proj.inverse), nil
}

func isEmpty(g orb.Geometry) bool {
	if c, ok := g.(orb.Collection); ok {
		return len(c) == 0
	}
	return false
}
