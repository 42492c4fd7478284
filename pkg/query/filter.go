// Package query runs selection gestures: it resolves layers, fetches
// candidates, keeps those intersecting the drawn geometry and merges them
// into the selection.
package query

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"multiselect/pkg/geo"
	"multiselect/pkg/logging"
	"multiselect/pkg/model"
)

// FilterIntersecting keeps the items whose geometry is not disjoint from g.
// Both sides are compared in EPSG:4326 on copies, so item features keep their
// native coordinates. A touching boundary counts as intersecting. An invalid
// query geometry is an error; an invalid candidate is logged and dropped.
func FilterIntersecting(items []model.Item, g orb.Geometry, proj geo.Projection) ([]model.Item, error) {
	query, err := geo.ToWGS84(g, proj)
	if err != nil {
		return nil, fmt.Errorf("query geometry: %w", err)
	}

	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.Feature == nil || it.Feature.Geometry == nil {
			continue
		}
		fg, err := geo.ToWGS84(it.Feature.Geometry, proj)
		if err != nil {
			slog.Warn("Skipping candidate with invalid geometry", "layer", layerName(it), "id", it.Feature.ID, "error", err)
			continue
		}
		disjoint, err := geo.Disjoint(fg, query)
		if err != nil {
			slog.Warn("Skipping candidate, intersection test failed", "layer", layerName(it), "id", it.Feature.ID, "error", err)
			continue
		}
		if disjoint {
			logging.TraceDefault("Candidate outside query", "layer", layerName(it), "id", it.Feature.ID)
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func layerName(it model.Item) string {
	if it.Layer == nil {
		return ""
	}
	return it.Layer.Name
}
