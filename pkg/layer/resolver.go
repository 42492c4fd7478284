package layer

import (
	"log/slog"
)

// Resolved is a leaf layer eligible for a query together with the group that
// scopes its selection.
type Resolved struct {
	Layer *Layer
	// Group is the top-level group the layer was reached through, nil for
	// top-level layers.
	Group *Layer
	// Alternate is set when the layer must be queried through proxies.
	Alternate *Alternate
}

// SelectionGroup returns the name and title used to group selected items.
func (r Resolved) SelectionGroup() (name, title string) {
	if r.Group != nil {
		return r.Group.Name, r.Group.Title
	}
	return r.Layer.Name, r.Layer.Title
}

// Resolver expands groups and filters layers by eligibility.
type Resolver struct {
	registry *Registry
	maxDepth int
	logger   *slog.Logger
}

// NewResolver creates a resolver. maxDepth limits group nesting (a group inside
// a top-level group is depth 2); 0 means unlimited.
func NewResolver(reg *Registry, maxDepth int) *Resolver {
	return &Resolver{
		registry: reg,
		maxDepth: maxDepth,
		logger:   slog.With("component", "layer_resolver"),
	}
}

// Registry returns the layer registry.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// ResolveLayers returns the ordered eligible leaf layers for cfg at the given
// map resolution.
func (r *Resolver) ResolveLayers(cfg *Config, resolution float64) []Resolved {
	var out []Resolved
	seen := make(map[*Layer]bool)

	emit := func(l, group *Layer) {
		if seen[l] || !r.IsEligible(l, cfg, resolution) {
			return
		}
		seen[l] = true
		res := Resolved{Layer: l, Group: group}
		if alt, ok := cfg.AlternateFor(l.Name); ok {
			res.Alternate = &alt
		}
		out = append(out, res)
	}

	if cfg.Explicit() {
		for _, name := range cfg.Layers {
			l, ok := r.registry.Get(name)
			if !ok {
				r.logger.Warn("Configured layer not found", "config", cfg.Name, "layer", name)
				continue
			}
			if cfg.Excluded(l.Name) {
				continue
			}
			group := r.registry.Root(l)
			if l.IsGroup() {
				if group == nil {
					group = l
				}
				depth := r.registry.Depth(l)
				if r.maxDepth > 0 && depth > r.maxDepth {
					r.logger.Warn("Layer group nesting exceeds limit, skipping",
						"group", l.Name, "root", group.Name, "max_depth", r.maxDepth)
					continue
				}
				r.walk(l, group, depth, func(leaf *Layer) {
					if !cfg.Excluded(leaf.Name) {
						emit(leaf, group)
					}
				}, true)
				continue
			}
			emit(l, group)
		}
		return out
	}

	for _, l := range r.registry.TopLevel() {
		if !l.Visible() || cfg.Excluded(l.Name) {
			continue
		}
		if l.IsGroup() {
			r.walk(l, l, 1, func(leaf *Layer) { emit(leaf, l) }, false)
			continue
		}
		emit(l, nil)
	}
	return out
}

// walk visits the leaves of group g. Deeper groups are flattened by recursion
// up to the configured depth limit.
func (r *Resolver) walk(g, root *Layer, depth int, visit func(*Layer), explicit bool) {
	for _, child := range g.Layers {
		if !child.IsGroup() {
			visit(child)
			continue
		}
		if r.maxDepth > 0 && depth+1 > r.maxDepth {
			r.logger.Warn("Layer group nesting exceeds limit, skipping",
				"group", child.Name, "root", root.Name, "max_depth", r.maxDepth)
			continue
		}
		if !explicit && !child.Visible() {
			continue
		}
		r.walk(child, root, depth+1, visit, explicit)
	}
}

// IsEligible reports whether l takes part in a query under cfg.
//
// Under an explicit profile a layer is eligible when it, or a group containing
// it, is listed and no group on the way is excluded; visibility and resolution
// are not rechecked. Otherwise a layer must be visible, queryable, inside its
// resolution range and not an externally rendered image service. The check is
// done for every leaf, as layers reached through a group are not covered by
// the host's own click lookup.
func (r *Resolver) IsEligible(l *Layer, cfg *Config, resolution float64) bool {
	if l == nil || l.IsGroup() {
		return false
	}
	if cfg.Excluded(l.Name) {
		return false
	}
	if cfg.Explicit() {
		return r.listed(l, cfg)
	}
	if l.Type == TypeArcGISImage {
		return false
	}
	return l.Visible() && l.Queryable() && l.InResolution(resolution)
}

// listed walks up from l to the first listed or excluded ancestor.
func (r *Resolver) listed(l *Layer, cfg *Config) bool {
	for cur, ok := l, true; ok; cur, ok = r.registry.Parent(cur) {
		if cfg.Lists(cur.Name) {
			return true
		}
		if cfg.Excluded(cur.Name) {
			return false
		}
	}
	return false
}
