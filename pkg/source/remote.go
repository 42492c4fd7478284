package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/logging"
)

// FetchFunc retrieves the features of a remote service inside an extent,
// restricted by a server-side filter. A nil extent requests the whole layer.
type FetchFunc func(ctx context.Context, ext *orb.Bound, filter string) ([]*geojson.Feature, error)

// Filterable is implemented by sources whose content depends on the layer
// filter.
type Filterable interface {
	SetFilter(filter string)
}

// Strategy decides which extents a network-backed source loads.
type Strategy string

const (
	// StrategyAll loads the whole layer once.
	StrategyAll Strategy = "all"
	// StrategyBBox loads only the extents that are requested.
	StrategyBBox Strategy = "bbox"
)

// Remote is a network-backed vector source. Features are kept in a local
// index; with the bbox strategy every requested extent not yet covered is
// fetched and inserted before it is queried. Loaded extents are only valid
// for the filter they were fetched with.
type Remote struct {
	*Vector

	fetch    FetchFunc
	strategy Strategy
	logger   *slog.Logger

	mu     sync.Mutex
	filter string
	loaded []orb.Bound
	all    bool
}

// NewRemote creates a network-backed source.
func NewRemote(name string, strategy Strategy, fetch FetchFunc) *Remote {
	if strategy == "" {
		strategy = StrategyBBox
	}
	return &Remote{
		Vector:   NewVector(),
		fetch:    fetch,
		strategy: strategy,
		logger:   slog.With("component", "remote_source", "layer", name),
	}
}

// SetFilter implements Filterable. A changed filter drops the loaded
// features so the next LoadExtent fetches again.
func (r *Remote) SetFilter(filter string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if filter == r.filter {
		return
	}
	r.filter = filter
	r.loaded = nil
	r.all = false
	r.Clear()
	r.logger.Debug("Filter changed, cleared loaded extents", "filter", filter)
}

// LoadExtent implements ExtentLoader.
func (r *Remote) LoadExtent(ctx context.Context, ext orb.Bound) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.covered(ext) {
		logging.Trace(r.logger, "Extent already loaded", "strategy", r.strategy, "extent", ext)
		return nil
	}

	req := &ext
	if r.strategy == StrategyAll {
		req = nil
	}

	features, err := r.fetch(ctx, req, r.filter)
	if err != nil {
		return fmt.Errorf("load extent: %w", err)
	}
	added := r.Add(features...)
	r.logger.Debug("Loaded extent", "strategy", r.strategy, "fetched", len(features), "added", added)

	if r.strategy == StrategyAll {
		r.all = true
	} else {
		r.loaded = append(r.loaded, ext)
	}
	return nil
}

func (r *Remote) covered(ext orb.Bound) bool {
	if r.all {
		return true
	}
	for _, b := range r.loaded {
		if b.Contains(ext.Min) && b.Contains(ext.Max) {
			return true
		}
	}
	return false
}
