package model

import (
	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/geo"
	"multiselect/pkg/layer"
)

// Mode tells the merger whether a gesture adds to or removes from the selection.
type Mode int

const (
	ModeAdd Mode = iota
	ModeRemove
)

func (m Mode) String() string {
	if m == ModeRemove {
		return "remove"
	}
	return "add"
}

// Property keys set on selected features.
const (
	PropTextHTML = "textHtml"
	PropGeom     = "geom"
	PropState    = "state"
)

// Item is a feature found by a query together with the layer it came from and
// the selection group it is reported under.
type Item struct {
	Feature *geojson.Feature
	Layer   *layer.Layer

	SelectionGroup      string
	SelectionGroupTitle string
}

// View exposes the map state a query depends on.
type View interface {
	Resolution() float64
	Projection() geo.Projection
}

// StaticView is a fixed View.
type StaticView struct {
	Res  float64
	Proj geo.Projection
}

func (v StaticView) Resolution() float64        { return v.Res }
func (v StaticView) Projection() geo.Projection { return v.Proj }
