// Package layer models map layers, the host registry and the rules that decide
// which layers take part in a selection query.
package layer

import (
	"math"
	"sync"

	"multiselect/pkg/source"
)

// Type is the kind of a layer.
type Type string

const (
	TypeVector Type = "vector"
	TypeWFS    Type = "wfs"
	TypeWMS    Type = "wms"
	TypeGroup  Type = "group"
	// TypeArcGISImage is an externally rendered image service without
	// feature semantics. It is never queried.
	TypeArcGISImage Type = "arcgis_image"
)

// QueryMethod selects how a raster layer is queried for features.
type QueryMethod string

const (
	// QueryFeatureInfo issues a pseudo feature-info request covering the extent.
	QueryFeatureInfo QueryMethod = "feature_info"
	// QueryWFS queries a same-named feature service at the layer's address.
	QueryWFS QueryMethod = "wfs"
)

// Layer is a node of the host layer tree.
type Layer struct {
	Name  string
	Title string
	Type  Type

	MinResolution float64
	MaxResolution float64 // 0 means unbounded

	URL          string
	InfoFormat   string
	QueryMethod  QueryMethod
	GeometryName string

	// BufferParam names the feature-info vendor parameter for the search
	// radius in pixels.
	BufferParam string

	// Source is the local feature index, nil for layers only reachable remotely.
	Source source.Source

	Layers []*Layer // children of a group

	mu        sync.RWMutex
	queryable bool
	visible   bool
	filter    string
}

// New creates a visible, queryable layer.
func New(name, title string, typ Type) *Layer {
	return &Layer{
		Name:      name,
		Title:     title,
		Type:      typ,
		queryable: true,
		visible:   true,
	}
}

// NewGroup creates a group layer holding children.
func NewGroup(name, title string, children ...*Layer) *Layer {
	g := New(name, title, TypeGroup)
	g.Layers = children
	return g
}

// IsGroup reports whether the layer is a group.
func (l *Layer) IsGroup() bool {
	return l.Type == TypeGroup
}

// Queryable reports whether features may be selected from the layer.
func (l *Layer) Queryable() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.queryable
}

// SetQueryable sets the queryable flag.
func (l *Layer) SetQueryable(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queryable = v
}

// Visible reports whether the layer is shown on the map.
func (l *Layer) Visible() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.visible
}

// SetVisible sets the visibility flag.
func (l *Layer) SetVisible(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.visible = v
}

// Filter returns the server-side filter expression (CQL), if any.
func (l *Layer) Filter() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filter
}

// SetFilter replaces the server-side filter expression. A source that
// depends on the filter is told about the change.
func (l *Layer) SetFilter(f string) {
	l.mu.Lock()
	l.filter = f
	l.mu.Unlock()
	if fs, ok := l.Source.(source.Filterable); ok {
		fs.SetFilter(f)
	}
}

// InResolution reports whether res lies within [MinResolution, MaxResolution).
func (l *Layer) InResolution(res float64) bool {
	maxRes := l.MaxResolution
	if maxRes <= 0 {
		maxRes = math.Inf(1)
	}
	return res >= l.MinResolution && res < maxRes
}
