// Package tool drives the selection tools: which drawing interaction is
// active and what happens when a gesture completes.
package tool

import "errors"

// State is the active selection tool.
type State string

const (
	StateInactive State = "inactive"
	StateClick    State = "click"
	StateBox      State = "box"
	StateCircle   State = "circle"
	StatePolygon  State = "polygon"
	StateBuffer   State = "buffer"
	StateLine     State = "line"
)

// AllTools lists the drawing tools in toolbar order.
var AllTools = []State{StateClick, StateBox, StateCircle, StatePolygon, StateBuffer, StateLine}

// BufferStage is the sub-state of the buffer tool.
type BufferStage string

const (
	StageNone   BufferStage = ""
	StagePick   BufferStage = "pick"   // waiting for a feature click
	StageRadius BufferStage = "radius" // waiting for a radius
)

var (
	ErrNotActive     = errors.New("selection tool is not active")
	ErrToolDisabled  = errors.New("tool is not enabled")
	ErrInvalidRadius = errors.New("invalid buffer radius")
	ErrWrongTool     = errors.New("gesture does not match the active tool")
)

// ParseState maps a tool name to its State.
func ParseState(name string) (State, bool) {
	for _, s := range AllTools {
		if string(s) == name {
			return s, true
		}
	}
	return StateInactive, false
}
