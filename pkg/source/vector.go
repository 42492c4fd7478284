// Package source holds in-memory feature sources backing local vector layers.
package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/rtree"
)

// Source is a local feature index that can be queried by extent.
type Source interface {
	// FeaturesInExtent returns features whose extent intersects ext.
	FeaturesInExtent(ext orb.Bound) []*geojson.Feature
}

// ExtentLoader is implemented by sources that load features on demand. The
// extent must be loaded before FeaturesInExtent gives a complete answer.
type ExtentLoader interface {
	LoadExtent(ctx context.Context, ext orb.Bound) error
}

// Vector is an R-tree indexed in-memory feature store.
type Vector struct {
	mu    sync.RWMutex
	tree  rtree.RTreeG[*geojson.Feature]
	byID  map[string]*geojson.Feature
	count int
}

// NewVector creates a source holding the given features.
func NewVector(features ...*geojson.Feature) *Vector {
	v := &Vector{byID: make(map[string]*geojson.Feature)}
	v.Add(features...)
	return v
}

// Add inserts features. Features without geometry are ignored. A feature whose
// id is already present is skipped so reloading an extent never duplicates.
func (v *Vector) Add(features ...*geojson.Feature) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	added := 0
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if key, ok := featureKey(f); ok {
			if _, exists := v.byID[key]; exists {
				continue
			}
			v.byID[key] = f
		}
		b := f.Geometry.Bound()
		v.tree.Insert(b.Min, b.Max, f)
		v.count++
		added++
	}
	return added
}

// FeaturesInExtent implements Source.
func (v *Vector) FeaturesInExtent(ext orb.Bound) []*geojson.Feature {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []*geojson.Feature
	v.tree.Search(ext.Min, ext.Max, func(_, _ [2]float64, f *geojson.Feature) bool {
		out = append(out, f)
		return true
	})
	return out
}

// Features returns every indexed feature in no particular order.
func (v *Vector) Features() []*geojson.Feature {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]*geojson.Feature, 0, v.count)
	v.tree.Scan(func(_, _ [2]float64, f *geojson.Feature) bool {
		out = append(out, f)
		return true
	})
	return out
}

// Clear removes every feature.
func (v *Vector) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tree.Clear()
	v.byID = make(map[string]*geojson.Feature)
	v.count = 0
}

// Len returns the number of indexed features.
func (v *Vector) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.count
}

func featureKey(f *geojson.Feature) (string, bool) {
	if f.ID == nil {
		return "", false
	}
	return fmt.Sprint(f.ID), true
}
