package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log           LogConfig          `yaml:"log"`
	Request       RequestConfig      `yaml:"request"`
	Cache         CacheConfig        `yaml:"cache"`
	Map           MapConfig          `yaml:"map"`
	Tools         ToolsConfig        `yaml:"tools"`
	Layers        []LayerConfig      `yaml:"layers"`
	LayerConfigs  LayerConfigsConfig `yaml:"layer_configs"`
	MaxGroupDepth int                `yaml:"max_group_depth"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	// Trace enables the very chatty per-feature debug output.
	Trace bool `yaml:"trace"`
}

// LogSettings holds settings for a specific log file.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
}

// Cache backends.
const (
	CacheNone   = "none"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// CacheConfig selects where remote responses are cached.
type CacheConfig struct {
	Backend       string   `yaml:"backend"`
	Path          string   `yaml:"path"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	TTL           Duration `yaml:"ttl"`
	PruneAfter    Duration `yaml:"prune_after"`
}

// MapConfig describes the working view.
type MapConfig struct {
	Projection string  `yaml:"projection"`
	Resolution float64 `yaml:"resolution"`
}

// ToolsConfig controls which selection tools are offered.
type ToolsConfig struct {
	Enabled          []string `yaml:"enabled"`
	Default          string   `yaml:"default"`
	LineBufferFactor float64  `yaml:"line_buffer_factor"`
	CircleSegments   int      `yaml:"circle_segments"`
	// DefaultRadius is used by the buffer tool when no radius is given.
	DefaultRadius Distance `yaml:"default_radius,omitempty"`
}

// LayerConfig declares one map layer. Groups list their children in Layers.
type LayerConfig struct {
	Name          string        `yaml:"name"`
	Title         string        `yaml:"title,omitempty"`
	Type          string        `yaml:"type"`
	Path          string        `yaml:"path,omitempty"`
	URL           string        `yaml:"url,omitempty"`
	Queryable     *bool         `yaml:"queryable,omitempty"`
	Visible       *bool         `yaml:"visible,omitempty"`
	MinResolution float64       `yaml:"min_resolution,omitempty"`
	MaxResolution float64       `yaml:"max_resolution,omitempty"`
	Filter        string        `yaml:"filter,omitempty"`
	InfoFormat    string        `yaml:"info_format,omitempty"`
	Strategy      string        `yaml:"strategy,omitempty"`
	QueryMethod   string        `yaml:"query_method,omitempty"`
	BufferParam   string        `yaml:"buffer_param,omitempty"`
	GeometryName  string        `yaml:"geometry_name,omitempty"`
	Layers        []LayerConfig `yaml:"layers,omitempty"`
}

// IsQueryable defaults to true when unset.
func (l *LayerConfig) IsQueryable() bool {
	return l.Queryable == nil || *l.Queryable
}

// IsVisible defaults to true when unset.
func (l *LayerConfig) IsVisible() bool {
	return l.Visible == nil || *l.Visible
}

// LayerConfigsConfig lists named layer profiles and the active one.
type LayerConfigsConfig struct {
	Current  string          `yaml:"current"`
	Profiles []ProfileConfig `yaml:"profiles"`
}

// ProfileConfig is one named layer profile.
type ProfileConfig struct {
	Name            string                     `yaml:"name"`
	Layers          []string                   `yaml:"layers,omitempty"`
	Exclude         []string                   `yaml:"exclude,omitempty"`
	AlternateLayers map[string]AlternateConfig `yaml:"alternate_layers,omitempty"`
}

// AlternateConfig names the proxy layers queried in place of a source layer.
type AlternateConfig struct {
	Layers          []string `yaml:"layers"`
	PropagateFilter bool     `yaml:"propagate_filter"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "logs/requests.log",
				Level: "INFO",
			},
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
			},
		},
		Cache: CacheConfig{
			Backend:    CacheSQLite,
			Path:       "data/multiselect.db",
			TTL:        Duration(24 * time.Hour),
			PruneAfter: Duration(7 * 24 * time.Hour),
		},
		Map: MapConfig{
			Projection: "EPSG:3857",
			Resolution: 1,
		},
		Tools: ToolsConfig{
			Enabled:          []string{"click", "box", "circle", "polygon", "buffer", "line"},
			Default:          "click",
			LineBufferFactor: 1,
			CircleSegments:   32,
		},
		LayerConfigs: LayerConfigsConfig{
			Current: "default",
		},
	}
}

// Load reads the configuration from path, creating a default file if none exists.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applyEnv(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv fills empty secrets from the environment. Values are never saved back.
func applyEnv(cfg *Config) {
	if cfg.Cache.RedisAddr == "" {
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			cfg.Cache.RedisAddr = addr
		}
	}
	if cfg.Cache.RedisPassword == "" {
		if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
			cfg.Cache.RedisPassword = pass
		}
	}
}

// Validate checks values that cannot be repaired by defaults.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", CacheNone, CacheSQLite, CacheRedis:
	default:
		return fmt.Errorf("invalid cache backend '%s': must be one of none, sqlite, redis", c.Cache.Backend)
	}
	if c.Map.Resolution <= 0 {
		return fmt.Errorf("invalid map resolution %v: must be positive", c.Map.Resolution)
	}
	if c.Tools.DefaultRadius < 0 {
		return fmt.Errorf("invalid default_radius %s: must be >= 0", c.Tools.DefaultRadius)
	}
	if c.MaxGroupDepth < 0 {
		return fmt.Errorf("invalid max_group_depth %d: must be >= 0", c.MaxGroupDepth)
	}
	seen := make(map[string]bool)
	var walk func([]LayerConfig) error
	walk = func(ls []LayerConfig) error {
		for i := range ls {
			l := &ls[i]
			if l.Name == "" {
				return fmt.Errorf("layer without name")
			}
			if seen[l.Name] {
				return fmt.Errorf("duplicate layer name '%s'", l.Name)
			}
			seen[l.Name] = true
			if err := walk(l.Layers); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(c.Layers)
}

// Save writes cfg to path with a short header.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Multiselect Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)

`)
	data = append(header, data...)

	reBackend := regexp.MustCompile(`(?m)^(\s+)backend:`)
	data = reBackend.ReplaceAll(data, []byte("${1}# Options: none, sqlite, redis\n${1}backend:"))

	reEnabled := regexp.MustCompile(`(?m)^(\s+)enabled:`)
	data = reEnabled.ReplaceAll(data, []byte("${1}# Options: click, box, circle, polygon, buffer, line\n${1}enabled:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
