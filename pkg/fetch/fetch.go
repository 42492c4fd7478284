// Package fetch retrieves candidate features for the eligible layers of a
// query from local indexes and remote map services.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/layer"
	"multiselect/pkg/model"
	"multiselect/pkg/source"
	"multiselect/pkg/tracker"
	"multiselect/pkg/wfs"
	"multiselect/pkg/wms"
)

// ErrNoSource is returned for a layer that has neither a local index nor a
// remote address to query.
var ErrNoSource = errors.New("layer has no queryable source")

// Warning reports a layer whose candidates could not be retrieved. The
// result of the query may be incomplete.
type Warning struct {
	Layer string
	Err   error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Layer, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// Fetcher retrieves candidates per layer.
type Fetcher struct {
	registry *layer.Registry
	wfs      *wfs.Client
	wms      *wms.Client
	tracker  *tracker.Tracker
	logger   *slog.Logger
}

// New creates a Fetcher. The service clients may be nil when no layer uses them.
func New(reg *layer.Registry, wfsClient *wfs.Client, wmsClient *wms.Client, t *tracker.Tracker) *Fetcher {
	return &Fetcher{
		registry: reg,
		wfs:      wfsClient,
		wms:      wmsClient,
		tracker:  t,
		logger:   slog.With("component", "fetcher"),
	}
}

// FetchAll retrieves the candidates of every layer concurrently and returns
// once all of them have finished. Items keep layer order; failures become
// warnings and never abort sibling layers.
func (f *Fetcher) FetchAll(ctx context.Context, layers []layer.Resolved, extents []orb.Bound, view model.View) ([]model.Item, []Warning) {
	type result struct {
		items    []model.Item
		warnings []Warning
	}
	results := make([]result, len(layers))

	var wg sync.WaitGroup
	for i, r := range layers {
		wg.Add(1)
		go func(i int, r layer.Resolved) {
			defer wg.Done()
			items, warnings := f.FetchCandidates(ctx, r, extents, view)
			results[i] = result{items: items, warnings: warnings}
		}(i, r)
	}
	wg.Wait()

	var (
		items    []model.Item
		warnings []Warning
	)
	for _, res := range results {
		items = append(items, res.items...)
		warnings = append(warnings, res.warnings...)
	}
	return items, warnings
}

// FetchCandidates returns the features of one resolved layer whose extent
// intersects any of extents. Proxy layers are queried concurrently. Items
// carry the selection group of r and keep proxy order.
func (f *Fetcher) FetchCandidates(ctx context.Context, r layer.Resolved, extents []orb.Bound, view model.View) ([]model.Item, []Warning) {
	group, title := r.SelectionGroup()

	targets, warnings := f.targets(r)

	type result struct {
		features []*geojson.Feature
		err      error
	}
	results := make([]result, len(targets))

	var wg sync.WaitGroup
	for i, l := range targets {
		wg.Add(1)
		go func(i int, l *layer.Layer) {
			defer wg.Done()
			features, err := f.fetchLayer(ctx, l, extents, view)
			results[i] = result{features: features, err: err}
		}(i, l)
	}
	wg.Wait()

	var items []model.Item
	for i, l := range targets {
		features, err := results[i].features, results[i].err
		if err != nil {
			f.logger.Warn("Fetch failed, results may be incomplete", "layer", l.Name, "error", err)
			f.tracker.TrackFailure(l.Name)
			warnings = append(warnings, Warning{Layer: l.Name, Err: err})
			continue
		}
		f.tracker.TrackFeatures(l.Name, len(features))
		for _, feat := range features {
			items = append(items, model.Item{
				Feature:             feat,
				Layer:               l,
				SelectionGroup:      group,
				SelectionGroupTitle: title,
			})
		}
	}
	return items, warnings
}

// targets returns the layers to query for r: the layer itself or its proxies.
func (f *Fetcher) targets(r layer.Resolved) ([]*layer.Layer, []Warning) {
	if r.Alternate == nil {
		return []*layer.Layer{r.Layer}, nil
	}

	var (
		out      []*layer.Layer
		warnings []Warning
	)
	filter := r.Layer.Filter()
	for _, name := range r.Alternate.Layers {
		proxy, ok := f.registry.Get(name)
		if !ok {
			err := fmt.Errorf("alternate layer %q not found", name)
			f.logger.Warn("Alternate layer missing", "layer", r.Layer.Name, "alternate", name)
			warnings = append(warnings, Warning{Layer: r.Layer.Name, Err: err})
			continue
		}
		// Overwrites the proxy's own filter.
		if r.Alternate.PropagateFilter && filter != "" {
			proxy.SetFilter(filter)
		}
		out = append(out, proxy)
	}
	return out, warnings
}

// fetchLayer queries l once per extent, concurrently, and merges the results
// in extent order. The first failing extent fails the layer.
func (f *Fetcher) fetchLayer(ctx context.Context, l *layer.Layer, extents []orb.Bound, view model.View) ([]*geojson.Feature, error) {
	parts := make([][]*geojson.Feature, len(extents))
	errs := make([]error, len(extents))

	var wg sync.WaitGroup
	for i, ext := range extents {
		wg.Add(1)
		go func(i int, ext orb.Bound) {
			defer wg.Done()
			parts[i], errs[i] = f.fetchExtent(ctx, l, ext, view)
		}(i, ext)
	}
	wg.Wait()

	var (
		out  []*geojson.Feature
		seen = make(map[any]bool)
	)
	for i, features := range parts {
		if errs[i] != nil {
			return nil, errs[i]
		}
		for _, feat := range features {
			key := featureKey(feat)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, feat)
		}
	}
	return out, nil
}

func (f *Fetcher) fetchExtent(ctx context.Context, l *layer.Layer, ext orb.Bound, view model.View) ([]*geojson.Feature, error) {
	if l.Source != nil {
		if loader, ok := l.Source.(source.ExtentLoader); ok {
			if err := loader.LoadExtent(ctx, ext); err != nil {
				return nil, err
			}
		}
		return l.Source.FeaturesInExtent(ext), nil
	}

	switch l.Type {
	case layer.TypeWMS:
		if l.QueryMethod == layer.QueryFeatureInfo {
			return f.featureInfo(ctx, l, ext, view)
		}
		return f.getFeature(ctx, l, ext, view)
	case layer.TypeWFS:
		return f.getFeature(ctx, l, ext, view)
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrNoSource, l.Name, l.Type)
}

func (f *Fetcher) getFeature(ctx context.Context, l *layer.Layer, ext orb.Bound, view model.View) ([]*geojson.Feature, error) {
	if f.wfs == nil || l.URL == "" {
		return nil, fmt.Errorf("%w: %s has no feature service", ErrNoSource, l.Name)
	}
	return f.wfs.GetFeatures(ctx, wfs.Query{
		URL:          l.URL,
		TypeName:     l.Name,
		GeometryName: l.GeometryName,
		Filter:       l.Filter(),
		Extent:       &ext,
		SRS:          view.Projection(),
	})
}

func (f *Fetcher) featureInfo(ctx context.Context, l *layer.Layer, ext orb.Bound, view model.View) ([]*geojson.Feature, error) {
	if f.wms == nil || l.URL == "" {
		return nil, fmt.Errorf("%w: %s has no map service", ErrNoSource, l.Name)
	}
	q := wms.ExtentQuery(ext, view.Resolution())
	q.URL = l.URL
	q.Layer = l.Name
	q.Filter = l.Filter()
	q.Projection = view.Projection()
	q.BufferParam = l.BufferParam
	return f.wms.GetFeatures(ctx, q)
}

// featureKey identifies a feature across the per-extent requests of one layer.
func featureKey(f *geojson.Feature) any {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return f
}
