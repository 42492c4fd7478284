package selection

import (
	"log/slog"
	"sync"

	"multiselect/pkg/model"
)

// Outcome summarizes one merge.
type Outcome struct {
	Added   int
	Removed int
	// Highlighted is set when a single item was added as the focal item.
	Highlighted bool
}

// Merger applies query results to a selection set. Merges are serialized so
// overlapping gestures apply whole, in completion order.
type Merger struct {
	mu     sync.Mutex
	logger *slog.Logger
}

// NewMerger creates a Merger.
func NewMerger() *Merger {
	return &Merger{logger: slog.With("component", "merger")}
}

// Merge adds or removes items from set.
//
// Duplicates within the batch collapse to their first occurrence. In add mode
// items already selected in their group are dropped; a single survivor is
// added and highlighted, several are added without a focal item. In remove
// mode all survivors are removed.
func (m *Merger) Merge(items []model.Item, set Set, mode model.Mode) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := Dedup(items)

	if mode == model.ModeRemove {
		if len(batch) == 0 {
			return Outcome{}
		}
		removed := set.RemoveItems(batch)
		m.logger.Debug("Removed from selection", "candidates", len(batch), "removed", removed)
		return Outcome{Removed: removed}
	}

	fresh := NotSelected(batch, set)
	switch len(fresh) {
	case 0:
		return Outcome{}
	case 1:
		set.AddOrHighlightItem(fresh[0])
		m.logger.Debug("Added to selection", "count", 1, "group", fresh[0].SelectionGroup)
		return Outcome{Added: 1, Highlighted: true}
	}
	set.AddItems(fresh)
	m.logger.Debug("Added to selection", "count", len(fresh))
	return Outcome{Added: len(fresh)}
}
