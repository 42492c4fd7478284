package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/fetch"
	"multiselect/pkg/geo"
	"multiselect/pkg/layer"
	"multiselect/pkg/model"
	"multiselect/pkg/selection"
	"multiselect/pkg/wms"
)

// Deps wires an Engine to its collaborators.
type Deps struct {
	Resolver *layer.Resolver
	Fetcher  *fetch.Fetcher
	Set      selection.Set
	View     model.View
	Configs  *layer.Configs
	// Preview fetches HTML feature info for layers using text/html. Optional.
	Preview *wms.Client

	// LineBufferFactor scales the resolution into the tolerance, in meters,
	// applied around point and line queries. Values below 1 are raised to 1.
	LineBufferFactor float64
	CircleSegments   int
}

// Result describes one completed gesture.
type Result struct {
	ID       string
	Kind     geo.Kind
	Mode     model.Mode
	Layers   int
	Fetched  int
	Items    []model.Item // candidates intersecting the query
	Outcome  selection.Outcome
	Warnings []fetch.Warning
}

// Incomplete reports whether some layer could not be queried.
func (r Result) Incomplete() bool {
	return len(r.Warnings) > 0
}

// Engine runs selection queries against the current layer profile.
type Engine struct {
	resolver *layer.Resolver
	fetcher  *fetch.Fetcher
	merger   *selection.Merger
	set      selection.Set
	view     model.View
	configs  *layer.Configs
	preview  *wms.Client

	lineFactor float64
	segments   int

	mu      sync.RWMutex
	current *layer.Config

	logger *slog.Logger
}

// NewEngine creates an Engine using the default layer profile.
func NewEngine(d Deps) *Engine {
	factor := d.LineBufferFactor
	if factor < 1 {
		factor = 1
	}
	segments := d.CircleSegments
	if segments < 3 {
		segments = geo.DefaultCircleSegments
	}
	configs := d.Configs
	if configs == nil {
		configs = layer.NewConfigs()
	}
	current, _ := configs.Get(layer.DefaultConfigName)
	return &Engine{
		resolver:   d.Resolver,
		fetcher:    d.Fetcher,
		merger:     selection.NewMerger(),
		set:        d.Set,
		view:       d.View,
		configs:    configs,
		preview:    d.Preview,
		lineFactor: factor,
		segments:   segments,
		current:    current,
		logger:     slog.With("component", "query_engine"),
	}
}

// Set returns the selection the engine merges into.
func (e *Engine) Set() selection.Set {
	return e.set
}

// View returns the map context.
func (e *Engine) View() model.View {
	return e.view
}

// UseLayerConfig switches the active layer profile.
func (e *Engine) UseLayerConfig(name string) error {
	cfg, ok := e.configs.Get(name)
	if !ok {
		return fmt.Errorf("unknown layer config %q (available: %s)", name, strings.Join(e.configs.Names(), ", "))
	}
	e.mu.Lock()
	e.current = cfg
	e.mu.Unlock()
	e.logger.Info("Layer config selected", "config", name)
	return nil
}

// LayerConfig returns the active layer profile.
func (e *Engine) LayerConfig() *layer.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Run executes a drawn query and merges the hits into the selection.
func (e *Engine) Run(ctx context.Context, q geo.QueryGeometry, mode model.Mode) (Result, error) {
	res, err := e.Candidates(ctx, q)
	if err != nil {
		return res, err
	}
	res.Mode = mode
	e.merge(ctx, &res)
	return res, nil
}

// RunBuffer selects everything within radius meters of target.
func (e *Engine) RunBuffer(ctx context.Context, target orb.Geometry, radius float64, mode model.Mode) (Result, error) {
	buffered, err := geo.Buffer(target, radius, e.view.Projection())
	if err != nil {
		return Result{}, fmt.Errorf("buffer target: %w", err)
	}
	res, err := e.Candidates(ctx, geo.QueryFromGeometry(buffered.Geometry))
	if err != nil {
		return res, err
	}
	res.Mode = mode
	e.merge(ctx, &res)
	return res, nil
}

// Candidates runs a query without touching the selection.
func (e *Engine) Candidates(ctx context.Context, q geo.QueryGeometry) (Result, error) {
	res := Result{ID: uuid.NewString(), Kind: q.Kind}
	log := e.logger.With("gesture", res.ID, "kind", q.Kind)

	g, err := geo.NormalizeSegments(q, e.segments)
	if err != nil {
		return res, err
	}
	if q.Kind == geo.KindPoint || q.Kind == geo.KindLine {
		tolerance := e.view.Resolution() * e.lineFactor
		buffered, err := geo.Buffer(g, tolerance, e.view.Projection())
		if err != nil {
			return res, err
		}
		g = buffered.Geometry
	}

	resolved := e.resolver.ResolveLayers(e.LayerConfig(), e.view.Resolution())
	res.Layers = len(resolved)

	items, warnings := e.fetcher.FetchAll(ctx, resolved, geo.Extents(g), e.view)
	res.Fetched = len(items)
	res.Warnings = warnings

	hits, err := FilterIntersecting(items, g, e.view.Projection())
	if err != nil {
		return res, err
	}
	res.Items = hits

	log.Debug("Query evaluated", "layers", res.Layers, "candidates", res.Fetched, "hits", len(hits), "warnings", len(warnings))
	return res, nil
}

func (e *Engine) merge(ctx context.Context, res *Result) {
	if res.Mode == model.ModeAdd {
		res.Warnings = append(res.Warnings, e.enrich(ctx, res.Items)...)
	}
	res.Outcome = e.merger.Merge(res.Items, e.set, res.Mode)

	attrs := []any{
		"gesture", res.ID, "kind", res.Kind, "mode", res.Mode,
		"hits", len(res.Items), "added", res.Outcome.Added, "removed", res.Outcome.Removed,
	}
	if res.Incomplete() {
		e.logger.Warn("Selection may be incomplete", append(attrs, "failed_layers", len(res.Warnings))...)
		return
	}
	e.logger.Info("Selection updated", attrs...)
}

// enrich attaches an HTML feature-info preview to every item when the hits
// come from text/html layers and none from a feature service. Items get a
// copy of their feature so local sources are not modified.
func (e *Engine) enrich(ctx context.Context, items []model.Item) []fetch.Warning {
	if e.preview == nil || !needsPreview(items) {
		return nil
	}

	var warnings []fetch.Warning
	for i := range items {
		it := &items[i]
		if it.Layer == nil || it.Layer.URL == "" {
			continue
		}
		center, ok := geo.Center(it.Feature.Geometry)
		if !ok {
			continue
		}
		q := wms.PixelQuery(center, e.view.Resolution())
		q.URL = it.Layer.URL
		q.Layer = it.Layer.Name
		q.Filter = it.Layer.Filter()
		q.Projection = e.view.Projection()

		html, err := e.preview.Preview(ctx, q)
		if err != nil {
			e.logger.Warn("Feature info preview failed", "layer", it.Layer.Name, "error", err)
			warnings = append(warnings, fetch.Warning{Layer: it.Layer.Name, Err: err})
			continue
		}
		if html == "" {
			continue
		}
		f := cloneFeature(it.Feature)
		f.Properties[model.PropTextHTML] = html
		it.Feature = f
	}
	return warnings
}

func needsPreview(items []model.Item) bool {
	html := false
	for _, it := range items {
		if it.Layer == nil {
			continue
		}
		if it.Layer.Type == layer.TypeWFS {
			return false
		}
		if it.Layer.InfoFormat == wms.FormatHTML {
			html = true
		}
	}
	return html
}

func cloneFeature(f *geojson.Feature) *geojson.Feature {
	out := *f
	out.Properties = f.Properties.Clone()
	if out.Properties == nil {
		out.Properties = geojson.Properties{}
	}
	return &out
}

// SelectionGeometry returns the geometries of the current selection as a
// single buffer target, or nil when nothing is selected.
func SelectionGeometry(set selection.Set) orb.Geometry {
	items := set.Items()
	var parts orb.Collection
	for _, it := range items {
		if it.Feature != nil && it.Feature.Geometry != nil {
			parts = append(parts, it.Feature.Geometry)
		}
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return parts
}
