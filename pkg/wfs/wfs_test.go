package wfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiselect/pkg/geo"
	"multiselect/pkg/request"
)

func TestBuildURL(t *testing.T) {
	ext := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 20.5}}

	t.Run("bbox only", func(t *testing.T) {
		u, err := BuildURL(Query{URL: "http://example.com/wfs?token=x", TypeName: "parcels", Extent: &ext, SRS: geo.WebMercator})
		require.NoError(t, err)
		parsed, _ := url.Parse(u)
		q := parsed.Query()
		assert.Equal(t, "x", q.Get("token"))
		assert.Equal(t, "GetFeature", q.Get("request"))
		assert.Equal(t, "parcels", q.Get("typeName"))
		assert.Equal(t, "application/json", q.Get("outputFormat"))
		assert.Equal(t, "0,0,10,20.5,EPSG:3857", q.Get("bbox"))
		assert.Empty(t, q.Get("CQL_FILTER"))
	})

	t.Run("filter and bbox", func(t *testing.T) {
		u, err := BuildURL(Query{URL: "http://example.com/wfs", TypeName: "parcels", Filter: "owner='A'", Extent: &ext, SRS: geo.WebMercator})
		require.NoError(t, err)
		parsed, _ := url.Parse(u)
		q := parsed.Query()
		assert.Empty(t, q.Get("bbox"))
		assert.Equal(t, "(owner='A') AND BBOX(geom,0,0,10,20.5,'EPSG:3857')", q.Get("CQL_FILTER"))
	})

	t.Run("geographic bbox", func(t *testing.T) {
		u, err := BuildURL(Query{URL: "http://example.com/wfs", TypeName: "parcels", Extent: &ext, SRS: geo.WGS84})
		require.NoError(t, err)
		parsed, _ := url.Parse(u)
		q := parsed.Query()
		assert.Equal(t, "EPSG:4326", q.Get("srsName"))
		assert.Equal(t, "0,0,20.5,10,urn:ogc:def:crs:EPSG::4326", q.Get("bbox"))
	})

	t.Run("geographic filter and bbox", func(t *testing.T) {
		u, err := BuildURL(Query{URL: "http://example.com/wfs", TypeName: "parcels", Filter: "owner='A'", Extent: &ext, SRS: geo.WGS84})
		require.NoError(t, err)
		parsed, _ := url.Parse(u)
		assert.Equal(t, "(owner='A') AND BBOX(geom,0,0,10,20.5,'CRS:84')", parsed.Query().Get("CQL_FILTER"))
	})

	t.Run("whole layer", func(t *testing.T) {
		u, err := BuildURL(Query{URL: "http://example.com/wfs", TypeName: "parcels"})
		require.NoError(t, err)
		parsed, _ := url.Parse(u)
		assert.Empty(t, parsed.Query().Get("bbox"))
	})

	t.Run("no url", func(t *testing.T) {
		_, err := BuildURL(Query{TypeName: "parcels"})
		assert.Error(t, err)
	})
}

func TestGetFeatures(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "roads", r.URL.Query().Get("typeName"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","id":"roads.1","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":"A"}},
			{"type":"Feature","id":"roads.2","geometry":{"type":"Point","coordinates":[3,4]},"properties":{"name":"B"}}
		]}`))
	}))
	defer svr.Close()

	c := New(request.New(nil, nil, request.Options{}), false)
	ext := orb.Bound{Max: orb.Point{5, 5}}
	fs, err := c.GetFeatures(context.Background(), Query{URL: svr.URL, TypeName: "roads", Extent: &ext})
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, "roads.1", fs[0].ID)
	assert.Equal(t, orb.Point{3, 4}, fs[1].Geometry)
}

func TestGetFeatures_BadResponse(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<ServiceException/>"))
	}))
	defer svr.Close()

	c := New(request.New(nil, nil, request.Options{}), false)
	_, err := c.GetFeatures(context.Background(), Query{URL: svr.URL, TypeName: "roads"})
	assert.Error(t, err)
}
