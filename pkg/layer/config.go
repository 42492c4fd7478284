package layer

// DefaultConfigName is the implicit profile using all visible queryable layers.
const DefaultConfigName = "default"

// Alternate redirects queries for a layer to proxy layers.
type Alternate struct {
	Layers []string
	// PropagateFilter copies the source layer's filter onto each proxy
	// before it is queried. The proxy's filter is overwritten, so a proxy
	// should be dedicated to this purpose.
	PropagateFilter bool
}

// Config is a named profile selecting which layers a query touches.
type Config struct {
	Name string
	// Layers lists eligible layers explicitly. When empty the default
	// visibility rules apply.
	Layers []string
	// Exclude removes layers from the eligible set.
	Exclude []string
	// Alternates maps a layer name to the proxies queried instead.
	Alternates map[string]Alternate
}

// DefaultConfig returns the implicit "all visible queryable layers" profile.
func DefaultConfig() *Config {
	return &Config{Name: DefaultConfigName}
}

// Explicit reports whether the profile lists its layers.
func (c *Config) Explicit() bool {
	return c != nil && len(c.Layers) > 0
}

// Excluded reports whether name is in the exclusion list.
func (c *Config) Excluded(name string) bool {
	if c == nil {
		return false
	}
	for _, n := range c.Exclude {
		if n == name {
			return true
		}
	}
	return false
}

// Lists reports whether name is in the explicit layer list.
func (c *Config) Lists(name string) bool {
	if c == nil {
		return false
	}
	for _, n := range c.Layers {
		if n == name {
			return true
		}
	}
	return false
}

// AlternateFor returns the proxy configuration for a layer.
func (c *Config) AlternateFor(name string) (Alternate, bool) {
	if c == nil || c.Alternates == nil {
		return Alternate{}, false
	}
	a, ok := c.Alternates[name]
	return a, ok && len(a.Layers) > 0
}

// Configs holds the available profiles and the current one.
type Configs struct {
	profiles map[string]*Config
	order    []string
}

// NewConfigs registers profiles. The default profile always exists.
func NewConfigs(profiles ...*Config) *Configs {
	c := &Configs{profiles: make(map[string]*Config)}
	c.add(DefaultConfig())
	for _, p := range profiles {
		c.add(p)
	}
	return c
}

func (c *Configs) add(p *Config) {
	if _, ok := c.profiles[p.Name]; !ok {
		c.order = append(c.order, p.Name)
	}
	c.profiles[p.Name] = p
}

// Get returns the profile with the given name.
func (c *Configs) Get(name string) (*Config, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

// Names returns profile names in registration order.
func (c *Configs) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
