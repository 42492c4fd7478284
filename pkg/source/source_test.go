package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointFeature(id string, x, y float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{x, y})
	f.ID = id
	f.Properties["name"] = id
	return f
}

func TestVector_FeaturesInExtent(t *testing.T) {
	line := geojson.NewFeature(orb.LineString{{0, 0}, {100, 100}})
	v := NewVector(
		pointFeature("a", 10, 10),
		pointFeature("b", 50, 50),
		line,
		geojson.NewFeature(nil),
	)
	assert.Equal(t, 3, v.Len())
	assert.Len(t, v.Features(), 3)

	got := v.FeaturesInExtent(orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{15, 15}})
	assert.Len(t, got, 2, "point a and the line's extent")

	got = v.FeaturesInExtent(orb.Bound{Min: orb.Point{200, 200}, Max: orb.Point{300, 300}})
	assert.Empty(t, got)
}

func TestVector_SkipsDuplicateIDs(t *testing.T) {
	v := NewVector(pointFeature("a", 1, 1))
	added := v.Add(pointFeature("a", 1, 1), pointFeature("b", 2, 2))
	assert.Equal(t, 1, added)
	assert.Equal(t, 2, v.Len())
}

func TestLoadGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parks.geojson")
	content := `{
	  "type": "FeatureCollection",
	  "features": [
		{"type": "Feature", "id": 1, "properties": {"name": "Humlegården"},
		 "geometry": {"type": "Polygon", "coordinates": [[[18.07,59.34],[18.08,59.34],[18.08,59.345],[18.07,59.34]]]}}
	  ]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := Load(path)
	require.NoError(t, err)
	got := v.FeaturesInExtent(orb.Bound{Min: orb.Point{18.075, 59.341}, Max: orb.Point{18.076, 59.342}})
	require.Len(t, got, 1)
	assert.Equal(t, "Humlegården", got[0].Properties["name"])

	_, err = Load(filepath.Join(t.TempDir(), "layer.kml"))
	assert.Error(t, err)
}

func TestLoadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wells.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))
	n := w.Write(&shp.Point{X: 10, Y: 20})
	require.NoError(t, w.WriteAttribute(int(n), 0, "north"))
	n = w.Write(&shp.Point{X: 30, Y: 40})
	require.NoError(t, w.WriteAttribute(int(n), 0, "south"))
	w.Close()

	v, err := LoadShapefile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())

	got := v.FeaturesInExtent(orb.Bound{Min: orb.Point{9, 19}, Max: orb.Point{11, 21}})
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Properties["NAME"], "north")
	assert.Equal(t, 0, got[0].ID)
}

func TestRemote_BBoxStrategy(t *testing.T) {
	calls := 0
	r := NewRemote("roads", StrategyBBox, func(_ context.Context, ext *orb.Bound, _ string) ([]*geojson.Feature, error) {
		calls++
		require.NotNil(t, ext)
		return []*geojson.Feature{pointFeature("p1", 5, 5)}, nil
	})

	outer := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	require.NoError(t, r.LoadExtent(context.Background(), outer))
	assert.Len(t, r.FeaturesInExtent(outer), 1)

	inner := orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{8, 8}}
	require.NoError(t, r.LoadExtent(context.Background(), inner))
	assert.Equal(t, 1, calls, "covered extent is not fetched again")

	require.NoError(t, r.LoadExtent(context.Background(), orb.Bound{Min: orb.Point{20, 20}, Max: orb.Point{30, 30}}))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, r.Len(), "same id is inserted once")
}

func TestRemote_AllStrategyAndErrors(t *testing.T) {
	fail := true
	r := NewRemote("zones", StrategyAll, func(_ context.Context, ext *orb.Bound, _ string) ([]*geojson.Feature, error) {
		assert.Nil(t, ext)
		if fail {
			return nil, errors.New("boom")
		}
		return []*geojson.Feature{pointFeature("z", 1, 1)}, nil
	})

	ext := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}
	assert.Error(t, r.LoadExtent(context.Background(), ext))
	assert.Equal(t, 0, r.Len())

	fail = false
	require.NoError(t, r.LoadExtent(context.Background(), ext))
	require.NoError(t, r.LoadExtent(context.Background(), orb.Bound{Min: orb.Point{50, 50}, Max: orb.Point{60, 60}}))
	assert.Equal(t, 1, r.Len())
}

func TestRemote_FilterChangeReloads(t *testing.T) {
	var filters []string
	r := NewRemote("parcels", StrategyBBox, func(_ context.Context, _ *orb.Bound, filter string) ([]*geojson.Feature, error) {
		filters = append(filters, filter)
		return []*geojson.Feature{pointFeature(filter, 5, 5)}, nil
	})
	ext := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}

	r.SetFilter("kind='a'")
	require.NoError(t, r.LoadExtent(context.Background(), ext))
	r.SetFilter("kind='a'")
	require.NoError(t, r.LoadExtent(context.Background(), ext))
	assert.Equal(t, []string{"kind='a'"}, filters, "same filter keeps the loaded extent")

	r.SetFilter("kind='b'")
	assert.Equal(t, 0, r.Len())
	require.NoError(t, r.LoadExtent(context.Background(), ext))
	assert.Equal(t, []string{"kind='a'", "kind='b'"}, filters)

	got := r.FeaturesInExtent(ext)
	require.Len(t, got, 1)
	assert.Equal(t, "kind='b'", got[0].ID)
}
