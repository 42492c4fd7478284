package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"multiselect/pkg/geo"
	"multiselect/pkg/model"
	"multiselect/pkg/query"
)

// Options configure a Session.
type Options struct {
	// Enabled lists the selectable tools; empty enables all.
	Enabled []State
	// Default is selected on activation, falling back to click.
	Default State

	Interactions Interactions
	Tooltip      Tooltip
	Picker       FeaturePicker
	Prompt       RadiusPrompt
}

// Session holds the tool state of one map. Sessions are independent; the
// query engine and its selection set may be shared.
type Session struct {
	id      string
	engine  *query.Engine
	enabled map[State]bool
	def     State

	interactions Interactions
	tooltip      Tooltip
	picker       FeaturePicker
	prompt       RadiusPrompt

	mu     sync.Mutex
	state  State
	stage  BufferStage
	target orb.Geometry // buffer target once picked
	picked *model.Item  // feature chosen through the host's feature info

	sketching    bool
	sketchCenter orb.Point

	logger *slog.Logger
}

// NewSession creates an inactive session.
func NewSession(engine *query.Engine, opts Options) *Session {
	enabled := make(map[State]bool)
	tools := opts.Enabled
	if len(tools) == 0 {
		tools = AllTools
	}
	for _, t := range tools {
		enabled[t] = true
	}
	def := opts.Default
	if !enabled[def] {
		def = StateClick
		if !enabled[def] {
			def = tools[0]
		}
	}

	s := &Session{
		id:           uuid.NewString(),
		engine:       engine,
		enabled:      enabled,
		def:          def,
		interactions: opts.Interactions,
		tooltip:      opts.Tooltip,
		picker:       opts.Picker,
		prompt:       opts.Prompt,
		state:        StateInactive,
	}
	if s.interactions == nil {
		s.interactions = nopInteractions{}
	}
	if s.tooltip == nil {
		s.tooltip = nopTooltip{}
	}
	if s.picker == nil {
		s.picker = firstPicker{}
	}
	if s.prompt == nil {
		s.prompt = nopPrompt{}
	}
	s.logger = slog.With("component", "tool_session", "session", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the active tool and, for the buffer tool, its stage.
func (s *Session) State() (State, BufferStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.stage
}

// Enabled reports whether a tool can be selected.
func (s *Session) Enabled(t State) bool {
	return s.enabled[t]
}

// Activate turns the selection tools on with the default tool.
func (s *Session) Activate() {
	s.mu.Lock()
	if s.state != StateInactive {
		s.mu.Unlock()
		return
	}
	target := s.switchLocked(s.def)
	s.mu.Unlock()

	s.logger.Info("Selection tools activated", "tool", s.def)
	s.promptFor(target, nil)
}

// Deactivate turns the tools off, dropping any sketch and the selection.
func (s *Session) Deactivate() {
	s.mu.Lock()
	if s.state == StateInactive {
		s.mu.Unlock()
		return
	}
	s.interactions.Deactivate(s.state)
	s.clearSketchLocked()
	s.state = StateInactive
	s.stage = StageNone
	s.target = nil
	s.picked = nil
	s.mu.Unlock()

	s.engine.Set().Clear()
	s.logger.Info("Selection tools deactivated")
}

// SelectTool switches to t. Exactly one drawing interaction is active
// afterwards. Selecting the buffer tool re-evaluates its entry stage.
func (s *Session) SelectTool(t State) error {
	s.mu.Lock()
	if s.state == StateInactive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if !s.enabled[t] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrToolDisabled, t)
	}
	if t == s.state && t != StateBuffer {
		s.mu.Unlock()
		return nil
	}
	s.interactions.Deactivate(s.state)
	s.clearSketchLocked()
	target := s.switchLocked(t)
	stage := s.stage
	s.mu.Unlock()

	s.logger.Debug("Tool selected", "tool", t, "stage", stage)
	s.promptFor(target, nil)
	return nil
}

// switchLocked enters t and returns the buffer target awaiting a radius, if
// any. The caller has deactivated the previous interaction.
func (s *Session) switchLocked(t State) orb.Geometry {
	s.state = t
	s.stage = StageNone
	s.target = nil
	s.interactions.Activate(t)
	if t != StateBuffer {
		return nil
	}

	// an existing selection or a prior pick becomes the buffer target
	if g := query.SelectionGeometry(s.engine.Set()); g != nil {
		s.target = g
	} else if s.picked != nil && s.picked.Feature != nil {
		s.target = s.picked.Feature.Geometry
	}
	if s.target == nil {
		s.stage = StagePick
		return nil
	}
	s.stage = StageRadius
	return s.target
}

// promptFor asks for a radius outside the session lock so the prompt may
// answer synchronously.
func (s *Session) promptFor(target orb.Geometry, lastErr error) {
	if target != nil {
		s.prompt.PromptRadius(target, lastErr)
	}
}

// UsePick records a feature chosen through the host's own feature info, to
// be used as buffer target when no selection exists.
func (s *Session) UsePick(item model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picked = &item
}

// Click handles a map click. With the click tool it selects, or removes when
// modifier is held. With the buffer tool waiting for a pick it chooses the
// buffer target and asks for a radius.
func (s *Session) Click(ctx context.Context, p orb.Point, modifier bool) (query.Result, error) {
	s.mu.Lock()
	state, stage := s.state, s.stage
	s.mu.Unlock()

	switch {
	case state == StateInactive:
		return query.Result{}, ErrNotActive
	case state == StateClick:
		return s.engine.Run(ctx, geo.PointQuery(p), modeFor(modifier))
	case state == StateBuffer && stage == StagePick:
		return s.pickTarget(ctx, p)
	}
	return query.Result{}, nil
}

func (s *Session) pickTarget(ctx context.Context, p orb.Point) (query.Result, error) {
	res, err := s.engine.Candidates(ctx, geo.PointQuery(p))
	if err != nil {
		return res, err
	}

	var chosen model.Item
	switch len(res.Items) {
	case 0:
		return res, nil
	case 1:
		chosen = res.Items[0]
	default:
		var ok bool
		if chosen, ok = s.picker.Pick(ctx, res.Items); !ok {
			return res, nil
		}
	}

	s.mu.Lock()
	if s.state != StateBuffer || s.stage != StagePick {
		s.mu.Unlock()
		return res, nil
	}
	s.target = chosen.Feature.Geometry
	s.stage = StageRadius
	target := s.target
	s.mu.Unlock()

	s.promptFor(target, nil)
	return res, nil
}

// DrawStart begins a circle sketch at center and shows the radius tooltip.
func (s *Session) DrawStart(center orb.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCircle {
		return
	}
	s.sketching = true
	s.sketchCenter = center
	s.tooltip.Show(radiusText(0), center)
}

// PointerMove updates the radius tooltip of a circle sketch.
func (s *Session) PointerMove(p orb.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sketching {
		return
	}
	c := s.sketchCenter
	mid := orb.Point{(c[0] + p[0]) / 2, (c[1] + p[1]) / 2}
	d, err := geo.MapDistance(c, p, s.engine.View().Projection())
	if err != nil {
		d = planar.Distance(c, p)
	}
	s.tooltip.Show(radiusText(d), mid)
}

// DrawEnd hands a finished drawing to the query engine.
func (s *Session) DrawEnd(ctx context.Context, q geo.QueryGeometry, modifier bool) (query.Result, error) {
	s.mu.Lock()
	state := s.state
	if state == StateInactive {
		s.mu.Unlock()
		return query.Result{}, ErrNotActive
	}
	if kindFor(state) != q.Kind {
		s.mu.Unlock()
		return query.Result{}, fmt.Errorf("%w: %s drawn with %s tool", ErrWrongTool, q.Kind, state)
	}
	s.clearSketchLocked()
	s.mu.Unlock()

	return s.engine.Run(ctx, q, modeFor(modifier))
}

// ConfirmRadius runs the buffer query for the entered radius. Invalid input
// re-prompts and leaves the session waiting for a radius.
func (s *Session) ConfirmRadius(ctx context.Context, input string) (query.Result, error) {
	s.mu.Lock()
	if s.state != StateBuffer || s.stage != StageRadius || s.target == nil {
		s.mu.Unlock()
		return query.Result{}, ErrNotActive
	}
	target := s.target
	radius, err := ParseRadius(input, target)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug("Radius rejected", "input", input, "error", err)
		s.promptFor(target, err)
		return query.Result{}, err
	}
	s.stage = StagePick
	s.target = nil
	s.picked = nil
	s.mu.Unlock()

	return s.engine.RunBuffer(ctx, target, radius, model.ModeAdd)
}

// ClearSelection empties the shared selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.picked = nil
	s.mu.Unlock()
	s.engine.Set().Clear()
}

func (s *Session) clearSketchLocked() {
	if s.sketching {
		s.tooltip.Hide()
	}
	s.sketching = false
}

func radiusText(r float64) string {
	return fmt.Sprintf("%.0f m", r)
}

func modeFor(modifier bool) model.Mode {
	if modifier {
		return model.ModeRemove
	}
	return model.ModeAdd
}

func kindFor(s State) geo.Kind {
	switch s {
	case StateClick:
		return geo.KindPoint
	case StateBox:
		return geo.KindBox
	case StateCircle:
		return geo.KindCircle
	case StatePolygon:
		return geo.KindPolygon
	case StateLine:
		return geo.KindLine
	}
	return ""
}
