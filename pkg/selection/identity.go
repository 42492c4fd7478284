// Package selection merges query results into the shared selection set.
package selection

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/model"
)

// volatileProps are stripped before comparing features: geometry copies,
// HTML previews and transient UI state.
var volatileProps = map[string]bool{
	"geometry":         true,
	"the_geom":         true,
	model.PropGeom:     true,
	model.PropTextHTML: true,
	model.PropState:    true,
}

// Identity returns the comparison key of a feature: its attributes without
// volatile fields, serialized with sorted keys. Features with no remaining
// attributes fall back to their id, then to their geometry.
func Identity(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	clean := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		if volatileProps[k] {
			continue
		}
		clean[k] = v
	}
	if len(clean) > 0 {
		if b, err := json.Marshal(clean); err == nil {
			return string(b)
		}
		return fmt.Sprint(clean)
	}
	if f.ID != nil {
		return fmt.Sprintf("id:%v", f.ID)
	}
	if f.Geometry != nil {
		if b, err := geojson.NewGeometry(f.Geometry).MarshalJSON(); err == nil {
			return "geom:" + string(b)
		}
	}
	return fmt.Sprintf("ptr:%p", f)
}

// Dedup collapses items with equal identity to their first occurrence.
func Dedup(items []model.Item) []model.Item {
	seen := make(map[string]bool, len(items))
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		id := Identity(it.Feature)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, it)
	}
	return out
}

// NotSelected drops items whose identity already appears in their own
// selection group of set.
func NotSelected(items []model.Item, set Set) []model.Item {
	selected := make(map[string]map[string]bool)
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		ids, ok := selected[it.SelectionGroup]
		if !ok {
			ids = make(map[string]bool)
			for _, s := range set.ItemsForGroup(it.SelectionGroup) {
				ids[Identity(s.Feature)] = true
			}
			selected[it.SelectionGroup] = ids
		}
		if ids[Identity(it.Feature)] {
			continue
		}
		out = append(out, it)
	}
	return out
}
