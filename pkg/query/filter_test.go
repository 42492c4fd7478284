package query

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiselect/pkg/geo"
	"multiselect/pkg/model"
)

func TestFilterIntersecting(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}}}
	boundaryPoint := orb.Point{100, 50}
	touching := orb.Polygon{{{100, 100}, {200, 100}, {200, 200}, {100, 200}, {100, 100}}}
	outside := orb.Point{150, 50}

	items := []model.Item{
		{Feature: feature("boundary", boundaryPoint)},
		{Feature: feature("corner", touching)},
		{Feature: feature("outside", outside)},
		{Feature: feature("inside", orb.LineString{{10, 10}, {20, 20}})},
	}

	out, err := FilterIntersecting(items, square, geo.WebMercator)
	require.NoError(t, err)

	var names []any
	for _, it := range out {
		names = append(names, it.Feature.Properties["name"])
	}
	assert.Equal(t, []any{"boundary", "corner", "inside"}, names)

	// candidates keep their native coordinates
	assert.Equal(t, boundaryPoint, items[0].Feature.Geometry)
	assert.Equal(t, orb.Point{100, 100}, items[1].Feature.Geometry.(orb.Polygon)[0][0])
}

func TestFilterIntersecting_Collection(t *testing.T) {
	query := orb.Collection{
		orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		orb.Polygon{{{10, 0}, {11, 0}, {11, 1}, {10, 1}, {10, 0}}},
	}
	items := []model.Item{
		{Feature: feature("left", orb.Point{0.5, 0.5})},
		{Feature: feature("gap", orb.Point{5, 0.5})},
		{Feature: feature("right", orb.Point{10.5, 0.5})},
	}
	out, err := FilterIntersecting(items, query, geo.WGS84)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestFilterIntersecting_Errors(t *testing.T) {
	_, err := FilterIntersecting(nil, nil, geo.WebMercator)
	assert.ErrorIs(t, err, geo.ErrInvalidGeometry)

	_, err = FilterIntersecting(nil, orb.Point{1, 1}, geo.Projection("EPSG:2154"))
	assert.ErrorIs(t, err, geo.ErrUnsupportedProjection)
}
