package selection

import (
	"sync"

	"multiselect/pkg/model"
)

// Set is the shared selection held by the host.
type Set interface {
	AddItems(items []model.Item)
	AddOrHighlightItem(item model.Item)
	// RemoveItems removes items by selection group and identity and returns
	// how many were removed.
	RemoveItems(items []model.Item) int
	Clear()
	Items() []model.Item
	ItemsForGroup(group string) []model.Item
}

// Memory is an in-memory Set. Items are unique per selection group.
type Memory struct {
	mu          sync.RWMutex
	items       []model.Item
	highlighted int // index into items, -1 when none

	// OnAdd is called with each batch of newly added items.
	OnAdd func(items []model.Item)
}

// NewMemory creates an empty selection.
func NewMemory() *Memory {
	return &Memory{highlighted: -1}
}

// AddItems implements Set. Items already selected in their group are ignored.
func (m *Memory) AddItems(items []model.Item) {
	added := m.add(items)
	m.notify(added)
}

// AddOrHighlightItem implements Set. An item already selected is highlighted
// instead of added again.
func (m *Memory) AddOrHighlightItem(item model.Item) {
	m.mu.Lock()
	id := Identity(item.Feature)
	for i, it := range m.items {
		if it.SelectionGroup == item.SelectionGroup && Identity(it.Feature) == id {
			m.highlighted = i
			m.mu.Unlock()
			return
		}
	}
	m.items = append(m.items, item)
	m.highlighted = len(m.items) - 1
	m.mu.Unlock()

	m.notify([]model.Item{item})
}

func (m *Memory) add(items []model.Item) []model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.indexLocked()
	var added []model.Item
	for _, it := range items {
		key := it.SelectionGroup + "\x00" + Identity(it.Feature)
		if index[key] {
			continue
		}
		index[key] = true
		m.items = append(m.items, it)
		added = append(added, it)
	}
	return added
}

func (m *Memory) notify(added []model.Item) {
	if len(added) > 0 && m.OnAdd != nil {
		m.OnAdd(added)
	}
}

func (m *Memory) indexLocked() map[string]bool {
	index := make(map[string]bool, len(m.items))
	for _, it := range m.items {
		index[it.SelectionGroup+"\x00"+Identity(it.Feature)] = true
	}
	return index
}

// RemoveItems implements Set.
func (m *Memory) RemoveItems(items []model.Item) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(items))
	for _, it := range items {
		drop[it.SelectionGroup+"\x00"+Identity(it.Feature)] = true
	}

	var highlighted *model.Item
	if m.highlighted >= 0 {
		h := m.items[m.highlighted]
		highlighted = &h
	}

	kept := m.items[:0]
	removed := 0
	m.highlighted = -1
	for _, it := range m.items {
		if drop[it.SelectionGroup+"\x00"+Identity(it.Feature)] {
			removed++
			continue
		}
		if highlighted != nil && it.Feature == highlighted.Feature {
			m.highlighted = len(kept)
		}
		kept = append(kept, it)
	}
	// release references held past the new length
	for i := len(kept); i < len(m.items); i++ {
		m.items[i] = model.Item{}
	}
	m.items = kept
	return removed
}

// Clear implements Set.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	m.highlighted = -1
}

// Items implements Set.
func (m *Memory) Items() []model.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Item, len(m.items))
	copy(out, m.items)
	return out
}

// ItemsForGroup implements Set.
func (m *Memory) ItemsForGroup(group string) []model.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Item
	for _, it := range m.items {
		if it.SelectionGroup == group {
			out = append(out, it)
		}
	}
	return out
}

// Len returns the number of selected items.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Highlighted returns the focal item, if any.
func (m *Memory) Highlighted() (model.Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.highlighted < 0 {
		return model.Item{}, false
	}
	return m.items[m.highlighted], true
}
