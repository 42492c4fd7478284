package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiselect/pkg/geo"
	"multiselect/pkg/layer"
	"multiselect/pkg/model"
	"multiselect/pkg/request"
	"multiselect/pkg/source"
	"multiselect/pkg/tracker"
	"multiselect/pkg/wfs"
	"multiselect/pkg/wms"
)

var view = model.StaticView{Res: 1, Proj: geo.WebMercator}

func pointFeature(id string, x, y float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{x, y})
	f.ID = id
	f.Properties["name"] = id
	return f
}

func vectorLayer(name string, features ...*geojson.Feature) *layer.Layer {
	l := layer.New(name, name, layer.TypeVector)
	l.Source = source.NewVector(features...)
	return l
}

func featureServer(t *testing.T, calls *int32, check func(*http.Request)) *httptest.Server {
	t.Helper()
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if check != nil {
			check(r)
		}
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","id":"r.1","geometry":{"type":"Point","coordinates":[5,5]},"properties":{"name":"remote"}}
		]}`))
	}))
	t.Cleanup(svr.Close)
	return svr
}

// rendezvousServer answers once n requests are in flight together. A request
// left waiting marks the fetch as serial.
func rendezvousServer(t *testing.T, n int32, serial *atomic.Bool) *httptest.Server {
	t.Helper()
	var arrived int32
	all := make(chan struct{})
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&arrived, 1) == n {
			close(all)
		}
		select {
		case <-all:
		case <-time.After(2 * time.Second):
			serial.Store(true)
		}
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","id":"` + r.URL.Query().Get("typeName") + `","geometry":{"type":"Point","coordinates":[5,5]},"properties":{}}
		]}`))
	}))
	t.Cleanup(svr.Close)
	return svr
}

func newFetcher(reg *layer.Registry, tr *tracker.Tracker) *Fetcher {
	c := request.New(nil, nil, request.Options{Retries: 1})
	return New(reg, wfs.New(c, false), wms.New(c, false), tr)
}

func TestFetchCandidates_Local(t *testing.T) {
	l := vectorLayer("pts", pointFeature("a", 10, 10), pointFeature("b", 100, 100))
	g := layer.NewGroup("grp", "Group", l)
	reg := layer.NewRegistry(g)
	f := newFetcher(reg, nil)

	items, warnings := f.FetchCandidates(context.Background(),
		layer.Resolved{Layer: l, Group: g},
		[]orb.Bound{{Min: orb.Point{0, 0}, Max: orb.Point{20, 20}}}, view)

	assert.Empty(t, warnings)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Feature.ID)
	assert.Equal(t, "grp", items[0].SelectionGroup)
	assert.Equal(t, "Group", items[0].SelectionGroupTitle)
	assert.Same(t, l, items[0].Layer)
}

func TestFetchCandidates_PerPartExtents(t *testing.T) {
	l := vectorLayer("pts", pointFeature("a", 1, 1), pointFeature("mid", 50, 50), pointFeature("b", 99, 99))
	f := newFetcher(layer.NewRegistry(l), nil)

	extents := []orb.Bound{
		{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}},
		{Min: orb.Point{98, 98}, Max: orb.Point{100, 100}},
		{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
	}
	items, _ := f.FetchCandidates(context.Background(), layer.Resolved{Layer: l}, extents, view)

	var ids []any
	for _, it := range items {
		ids = append(ids, it.Feature.ID)
	}
	assert.Equal(t, []any{"a", "b"}, ids)
}

func TestFetchCandidates_BBoxStrategyLoadsFirst(t *testing.T) {
	var calls int32
	fetchFn := func(ctx context.Context, ext *orb.Bound, _ string) ([]*geojson.Feature, error) {
		atomic.AddInt32(&calls, 1)
		return []*geojson.Feature{pointFeature("net", 5, 5)}, nil
	}
	l := layer.New("net", "Net", layer.TypeVector)
	l.Source = source.NewRemote("net", source.StrategyBBox, fetchFn)
	f := newFetcher(layer.NewRegistry(l), nil)

	ext := []orb.Bound{{Max: orb.Point{10, 10}}}
	items, warnings := f.FetchCandidates(context.Background(), layer.Resolved{Layer: l}, ext, view)
	assert.Empty(t, warnings)
	require.Len(t, items, 1)

	_, _ = f.FetchCandidates(context.Background(), layer.Resolved{Layer: l}, ext, view)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchCandidates_WFS(t *testing.T) {
	var calls int32
	svr := featureServer(t, &calls, func(r *http.Request) {
		assert.Equal(t, "GetFeature", r.URL.Query().Get("request"))
		assert.Equal(t, "roads", r.URL.Query().Get("typeName"))
	})
	l := layer.New("roads", "Roads", layer.TypeWFS)
	l.URL = svr.URL
	tr := tracker.New()
	f := newFetcher(layer.NewRegistry(l), tr)

	items, warnings := f.FetchCandidates(context.Background(), layer.Resolved{Layer: l},
		[]orb.Bound{{Max: orb.Point{10, 10}}}, view)
	assert.Empty(t, warnings)
	require.Len(t, items, 1)
	assert.Equal(t, "roads", items[0].SelectionGroup)
	assert.Equal(t, int64(1), tr.Snapshot()["roads"].Features)
}

func TestFetchCandidates_RasterFeatureInfo(t *testing.T) {
	var calls int32
	svr := featureServer(t, &calls, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "GetFeatureInfo", q.Get("REQUEST"))
		assert.Equal(t, "8", q.Get("BUFFER"))
	})
	l := layer.New("ortho", "Ortho", layer.TypeWMS)
	l.URL = svr.URL
	l.QueryMethod = layer.QueryFeatureInfo
	f := newFetcher(layer.NewRegistry(l), nil)

	items, warnings := f.FetchCandidates(context.Background(), layer.Resolved{Layer: l},
		[]orb.Bound{{Max: orb.Point{10, 10}}}, view)
	assert.Empty(t, warnings)
	assert.Len(t, items, 1)
}

func TestFetchCandidates_RasterWFSFallback(t *testing.T) {
	var calls int32
	svr := featureServer(t, &calls, func(r *http.Request) {
		assert.Equal(t, "GetFeature", r.URL.Query().Get("request"))
	})
	l := layer.New("ortho", "Ortho", layer.TypeWMS)
	l.URL = svr.URL
	f := newFetcher(layer.NewRegistry(l), nil)

	items, _ := f.FetchCandidates(context.Background(), layer.Resolved{Layer: l},
		[]orb.Bound{{Max: orb.Point{10, 10}}}, view)
	assert.Len(t, items, 1)
}

func TestFetchCandidates_Alternate(t *testing.T) {
	var calls int32
	svr := featureServer(t, &calls, func(r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("CQL_FILTER"), "(kind='x')")
	})
	src := layer.New("src", "Source", layer.TypeWMS)
	src.SetFilter("kind='x'")
	proxy := layer.New("proxy", "Proxy", layer.TypeWFS)
	proxy.URL = svr.URL
	proxy.SetVisible(false)
	reg := layer.NewRegistry(src, proxy)
	f := newFetcher(reg, nil)

	r := layer.Resolved{
		Layer:     src,
		Alternate: &layer.Alternate{Layers: []string{"proxy", "gone"}, PropagateFilter: true},
	}
	items, warnings := f.FetchCandidates(context.Background(), r, []orb.Bound{{Max: orb.Point{10, 10}}}, view)

	require.Len(t, items, 1)
	assert.Same(t, proxy, items[0].Layer)
	assert.Equal(t, "src", items[0].SelectionGroup)
	assert.Equal(t, "kind='x'", proxy.Filter())
	require.Len(t, warnings, 1)
	assert.Equal(t, "src", warnings[0].Layer)
}

func TestFetchCandidates_AlternateFilterChangeReloads(t *testing.T) {
	var calls int32
	proxy := layer.New("proxy", "Proxy", layer.TypeWFS)
	proxy.Source = source.NewRemote("proxy", source.StrategyBBox, func(_ context.Context, _ *orb.Bound, filter string) ([]*geojson.Feature, error) {
		atomic.AddInt32(&calls, 1)
		f := pointFeature("p."+filter, 5, 5)
		f.Properties["filter"] = filter
		return []*geojson.Feature{f}, nil
	})
	srcA := layer.New("src_a", "A", layer.TypeWMS)
	srcA.SetFilter("kind='a'")
	srcB := layer.New("src_b", "B", layer.TypeWMS)
	srcB.SetFilter("kind='b'")
	f := newFetcher(layer.NewRegistry(srcA, srcB, proxy), nil)

	alt := &layer.Alternate{Layers: []string{"proxy"}, PropagateFilter: true}
	ext := []orb.Bound{{Max: orb.Point{10, 10}}}

	items, _ := f.FetchCandidates(context.Background(), layer.Resolved{Layer: srcA, Alternate: alt}, ext, view)
	require.Len(t, items, 1)
	assert.Equal(t, "kind='a'", items[0].Feature.Properties["filter"])

	items, _ = f.FetchCandidates(context.Background(), layer.Resolved{Layer: srcB, Alternate: alt}, ext, view)
	require.Len(t, items, 1)
	assert.Equal(t, "kind='b'", items[0].Feature.Properties["filter"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// unchanged filter reuses the loaded extent
	_, _ = f.FetchCandidates(context.Background(), layer.Resolved{Layer: srcB, Alternate: alt}, ext, view)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchCandidates_ProxiesConcurrent(t *testing.T) {
	var serial atomic.Bool
	svr := rendezvousServer(t, 2, &serial)
	src := layer.New("src", "Source", layer.TypeWMS)
	p1 := layer.New("p1", "P1", layer.TypeWFS)
	p1.URL = svr.URL
	p2 := layer.New("p2", "P2", layer.TypeWFS)
	p2.URL = svr.URL
	f := newFetcher(layer.NewRegistry(src, p1, p2), nil)

	r := layer.Resolved{Layer: src, Alternate: &layer.Alternate{Layers: []string{"p1", "p2"}}}
	items, warnings := f.FetchCandidates(context.Background(), r, []orb.Bound{{Max: orb.Point{10, 10}}}, view)

	assert.False(t, serial.Load(), "proxies should be queried together")
	assert.Empty(t, warnings)
	require.Len(t, items, 2)
	assert.Same(t, p1, items[0].Layer)
	assert.Same(t, p2, items[1].Layer)
}

func TestFetchCandidates_ExtentsConcurrent(t *testing.T) {
	var serial atomic.Bool
	svr := rendezvousServer(t, 2, &serial)
	l := layer.New("roads", "Roads", layer.TypeWFS)
	l.URL = svr.URL
	f := newFetcher(layer.NewRegistry(l), nil)

	extents := []orb.Bound{
		{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
		{Min: orb.Point{20, 20}, Max: orb.Point{30, 30}},
	}
	items, warnings := f.FetchCandidates(context.Background(), layer.Resolved{Layer: l}, extents, view)

	assert.False(t, serial.Load(), "part extents should be queried together")
	assert.Empty(t, warnings)
	require.Len(t, items, 1, "same feature from both parts is kept once")
}

func TestFetchAll_PartialFailure(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer svr.Close()

	broken := layer.New("broken", "Broken", layer.TypeWFS)
	broken.URL = svr.URL
	orphan := layer.New("orphan", "Orphan", layer.TypeVector)
	ok := vectorLayer("ok", pointFeature("a", 1, 1))
	tr := tracker.New()
	f := newFetcher(layer.NewRegistry(broken, orphan, ok), tr)

	items, warnings := f.FetchAll(context.Background(),
		[]layer.Resolved{{Layer: broken}, {Layer: orphan}, {Layer: ok}},
		[]orb.Bound{{Max: orb.Point{10, 10}}}, view)

	require.Len(t, items, 1)
	assert.Equal(t, "ok", items[0].Layer.Name)
	require.Len(t, warnings, 2)
	assert.Equal(t, "broken", warnings[0].Layer)
	assert.ErrorIs(t, warnings[1], ErrNoSource)
	assert.Equal(t, int64(1), tr.Snapshot()["broken"].Failures)
}

func TestFetchAll_Order(t *testing.T) {
	var layers []layer.Resolved
	var all []*layer.Layer
	for _, name := range []string{"a", "b", "c", "d"} {
		l := vectorLayer(name, pointFeature(name, 1, 1))
		all = append(all, l)
		layers = append(layers, layer.Resolved{Layer: l})
	}
	f := newFetcher(layer.NewRegistry(all...), nil)

	items, _ := f.FetchAll(context.Background(), layers, []orb.Bound{{Max: orb.Point{2, 2}}}, view)
	require.Len(t, items, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, name, items[i].Layer.Name)
	}
}
