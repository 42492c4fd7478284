// Package host wires the selection engine together from configuration.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"multiselect/pkg/cache"
	"multiselect/pkg/config"
	"multiselect/pkg/db"
	"multiselect/pkg/fetch"
	"multiselect/pkg/geo"
	"multiselect/pkg/layer"
	"multiselect/pkg/logging"
	"multiselect/pkg/model"
	"multiselect/pkg/query"
	"multiselect/pkg/request"
	"multiselect/pkg/selection"
	"multiselect/pkg/tool"
	"multiselect/pkg/tracker"
	"multiselect/pkg/wfs"
	"multiselect/pkg/wms"
)

// App holds the wired components of one map.
type App struct {
	Registry *layer.Registry
	Engine   *query.Engine
	Session  *tool.Session
	Set      *selection.Memory
	Tracker  *tracker.Tracker

	closers []func() error
}

// Build creates an App from cfg. The collaborators in collab are handed to
// the tool session; its tool list and default come from cfg.
func Build(cfg *config.Config, collab tool.Options) (*App, error) {
	proj := geo.Projection(cfg.Map.Projection)
	if err := proj.Validate(); err != nil {
		return nil, err
	}

	app := &App{Tracker: tracker.New()}

	c, useCache, err := app.openCache(&cfg.Cache)
	if err != nil {
		app.Close()
		return nil, err
	}

	client := request.New(c, app.Tracker, request.Options{
		Retries: cfg.Request.Retries,
		Timeout: time.Duration(cfg.Request.Timeout),
		Backoff: time.Duration(cfg.Request.Backoff.BaseDelay),
		Logger:  logging.RequestLogger,
	})
	wfsClient := wfs.New(client, useCache)
	wmsClient := wms.New(client, useCache)

	reg, err := BuildRegistry(cfg.Layers, wfsClient, proj)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build layers: %w", err)
	}
	app.Registry = reg

	enabled, def, err := toolList(&cfg.Tools)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Set = selection.NewMemory()
	app.Engine = query.NewEngine(query.Deps{
		Resolver:         layer.NewResolver(reg, cfg.MaxGroupDepth),
		Fetcher:          fetch.New(reg, wfsClient, wmsClient, app.Tracker),
		Set:              app.Set,
		View:             model.StaticView{Res: cfg.Map.Resolution, Proj: proj},
		Configs:          BuildConfigs(cfg.LayerConfigs),
		Preview:          wmsClient,
		LineBufferFactor: cfg.Tools.LineBufferFactor,
		CircleSegments:   cfg.Tools.CircleSegments,
	})
	if cur := cfg.LayerConfigs.Current; cur != "" && cur != layer.DefaultConfigName {
		if err := app.Engine.UseLayerConfig(cur); err != nil {
			app.Close()
			return nil, err
		}
	}

	collab.Enabled = enabled
	collab.Default = def
	app.Session = tool.NewSession(app.Engine, collab)

	slog.Info("Selection engine ready",
		"layers", len(reg.TopLevel()),
		"projection", proj,
		"resolution", cfg.Map.Resolution,
		"cache", cfg.Cache.Backend,
		"session", app.Session.ID())
	return app, nil
}

// openCache opens the configured response cache. The bool reports whether
// remote clients should key their responses.
func (a *App) openCache(cc *config.CacheConfig) (cache.Cacher, bool, error) {
	switch cc.Backend {
	case config.CacheSQLite:
		d, err := db.Init(cc.Path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to open cache db: %w", err)
		}
		a.closers = append(a.closers, d.Close)
		if cc.PruneAfter > 0 {
			n, err := d.PruneCache(time.Duration(cc.PruneAfter))
			if err != nil {
				slog.Warn("Cache prune failed", "error", err)
			} else if n > 0 {
				slog.Info("Pruned stale cache entries", "count", n)
			}
		}
		return cache.NewSQLiteCache(d, time.Duration(cc.TTL)), true, nil

	case config.CacheRedis:
		rc := cache.OpenRedis(cc.RedisAddr, cc.RedisPassword, cc.RedisDB)
		if rc == nil {
			return nil, false, errors.New("redis cache selected but no redis_addr set")
		}
		a.closers = append(a.closers, rc.Close)
		return cache.NewRedisCache(rc, time.Duration(cc.TTL)), true, nil
	}
	return cache.Nop{}, false, nil
}

// toolList parses the enabled tools and the default.
func toolList(tc *config.ToolsConfig) ([]tool.State, tool.State, error) {
	var enabled []tool.State
	for _, name := range tc.Enabled {
		s, ok := tool.ParseState(name)
		if !ok {
			return nil, "", fmt.Errorf("unknown tool %q", name)
		}
		enabled = append(enabled, s)
	}
	def := tool.StateClick
	if tc.Default != "" {
		s, ok := tool.ParseState(tc.Default)
		if !ok {
			return nil, "", fmt.Errorf("unknown default tool %q", tc.Default)
		}
		def = s
	}
	return enabled, def, nil
}

// Close releases the cache backends.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
}
