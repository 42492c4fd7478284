package layer

import "sync"

// Registry is the host's layer tree. Layers may be looked up by name at any
// depth; each layer knows its parent group.
type Registry struct {
	mu      sync.RWMutex
	top     []*Layer
	byName  map[string]*Layer
	parents map[*Layer]*Layer
}

// NewRegistry indexes the given top-level layers and their descendants.
func NewRegistry(layers ...*Layer) *Registry {
	r := &Registry{
		byName:  make(map[string]*Layer),
		parents: make(map[*Layer]*Layer),
	}
	for _, l := range layers {
		r.Add(l)
	}
	return r
}

// Add appends a top-level layer.
func (r *Registry) Add(l *Layer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.top = append(r.top, l)
	r.index(l, nil)
}

func (r *Registry) index(l, parent *Layer) {
	if _, dup := r.byName[l.Name]; !dup {
		r.byName[l.Name] = l
	}
	if parent != nil {
		r.parents[l] = parent
	}
	for _, child := range l.Layers {
		r.index(child, l)
	}
}

// TopLevel returns the top-level layers in map order.
func (r *Registry) TopLevel() []*Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Layer, len(r.top))
	copy(out, r.top)
	return out
}

// Get returns the layer with the given name at any depth.
func (r *Registry) Get(name string) (*Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byName[name]
	return l, ok
}

// Parent returns the group directly containing l.
func (r *Registry) Parent(l *Layer) (*Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parents[l]
	return p, ok
}

// Depth returns the nesting level of l: 1 for top-level layers, 2 for the
// members of a top-level group and so on.
func (r *Registry) Depth(l *Layer) int {
	depth := 1
	for p, ok := r.Parent(l); ok; p, ok = r.Parent(p) {
		depth++
	}
	return depth
}

// Root returns the top-level group containing l, or nil for top-level layers.
func (r *Registry) Root(l *Layer) *Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var root *Layer
	for p, ok := r.parents[l]; ok; p, ok = r.parents[p] {
		root = p
	}
	return root
}
