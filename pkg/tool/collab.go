package tool

import (
	"context"

	"github.com/paulmach/orb"

	"multiselect/pkg/model"
)

// Interactions switches the host's drawing interactions. It is called with
// the session locked and must not call back into the session.
type Interactions interface {
	Activate(s State)
	Deactivate(s State)
}

// Tooltip shows the live radius while a circle is drawn. Like Interactions
// it must not call back into the session.
type Tooltip interface {
	Show(text string, at orb.Point)
	Hide()
}

// FeaturePicker lets the user choose one of several features hit by a click.
type FeaturePicker interface {
	Pick(ctx context.Context, items []model.Item) (model.Item, bool)
}

// RadiusPrompt asks the user for a buffer radius. lastErr is set when the
// previous answer was rejected.
type RadiusPrompt interface {
	PromptRadius(target orb.Geometry, lastErr error)
}

type nopInteractions struct{}

func (nopInteractions) Activate(State)   {}
func (nopInteractions) Deactivate(State) {}

type nopTooltip struct{}

func (nopTooltip) Show(string, orb.Point) {}
func (nopTooltip) Hide()                  {}

type firstPicker struct{}

func (firstPicker) Pick(_ context.Context, items []model.Item) (model.Item, bool) {
	if len(items) == 0 {
		return model.Item{}, false
	}
	return items[0], true
}

type nopPrompt struct{}

func (nopPrompt) PromptRadius(orb.Geometry, error) {}
