package host

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/config"
	"multiselect/pkg/geo"
	"multiselect/pkg/layer"
	"multiselect/pkg/source"
	"multiselect/pkg/wfs"
)

// BuildRegistry turns the configured layer tree into a registry. Vector
// layers are loaded from disk; WFS layers with a loading strategy get a
// network-backed source, the others are queried per extent by the fetcher.
func BuildRegistry(layers []config.LayerConfig, wfsClient *wfs.Client, proj geo.Projection) (*layer.Registry, error) {
	reg := layer.NewRegistry()
	for i := range layers {
		l, err := buildLayer(&layers[i], wfsClient, proj)
		if err != nil {
			return nil, err
		}
		reg.Add(l)
	}
	return reg, nil
}

func buildLayer(lc *config.LayerConfig, wfsClient *wfs.Client, proj geo.Projection) (*layer.Layer, error) {
	title := lc.Title
	if title == "" {
		title = lc.Name
	}
	typ := layer.Type(lc.Type)

	var l *layer.Layer
	switch typ {
	case layer.TypeGroup:
		children := make([]*layer.Layer, 0, len(lc.Layers))
		for i := range lc.Layers {
			c, err := buildLayer(&lc.Layers[i], wfsClient, proj)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		l = layer.NewGroup(lc.Name, title, children...)

	case layer.TypeVector:
		if lc.Path == "" {
			return nil, fmt.Errorf("layer %s: vector layer needs a path", lc.Name)
		}
		src, err := source.Load(lc.Path)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", lc.Name, err)
		}
		l = layer.New(lc.Name, title, typ)
		l.Source = src

	case layer.TypeWFS:
		if lc.URL == "" {
			return nil, fmt.Errorf("layer %s: wfs layer needs a url", lc.Name)
		}
		l = layer.New(lc.Name, title, typ)
		switch source.Strategy(lc.Strategy) {
		case "":
		case source.StrategyAll, source.StrategyBBox:
			l.Source = source.NewRemote(lc.Name, source.Strategy(lc.Strategy), remoteFetch(l, wfsClient, proj))
		default:
			return nil, fmt.Errorf("layer %s: unknown strategy %q", lc.Name, lc.Strategy)
		}

	case layer.TypeWMS, layer.TypeArcGISImage:
		if lc.URL == "" {
			return nil, fmt.Errorf("layer %s: %s layer needs a url", lc.Name, lc.Type)
		}
		l = layer.New(lc.Name, title, typ)
		switch layer.QueryMethod(lc.QueryMethod) {
		case "", layer.QueryFeatureInfo, layer.QueryWFS:
			l.QueryMethod = layer.QueryMethod(lc.QueryMethod)
		default:
			return nil, fmt.Errorf("layer %s: unknown query method %q", lc.Name, lc.QueryMethod)
		}
		l.InfoFormat = lc.InfoFormat
		l.BufferParam = lc.BufferParam

	default:
		return nil, fmt.Errorf("layer %s: unknown type %q", lc.Name, lc.Type)
	}

	l.URL = lc.URL
	l.GeometryName = lc.GeometryName
	l.MinResolution = lc.MinResolution
	l.MaxResolution = lc.MaxResolution
	l.SetQueryable(lc.IsQueryable())
	l.SetVisible(lc.IsVisible())
	l.SetFilter(lc.Filter)
	return l, nil
}

// remoteFetch loads the layer's features with the filter the source holds.
func remoteFetch(l *layer.Layer, c *wfs.Client, proj geo.Projection) source.FetchFunc {
	return func(ctx context.Context, ext *orb.Bound, filter string) ([]*geojson.Feature, error) {
		if c == nil {
			return nil, fmt.Errorf("layer %s: no feature service client", l.Name)
		}
		return c.GetFeatures(ctx, wfs.Query{
			URL:          l.URL,
			TypeName:     l.Name,
			GeometryName: l.GeometryName,
			Filter:       filter,
			Extent:       ext,
			SRS:          proj,
		})
	}
}

// BuildConfigs converts the configured profiles. The default profile is
// always present.
func BuildConfigs(cfg config.LayerConfigsConfig) *layer.Configs {
	profiles := make([]*layer.Config, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		lc := &layer.Config{
			Name:    p.Name,
			Layers:  p.Layers,
			Exclude: p.Exclude,
		}
		if len(p.AlternateLayers) > 0 {
			lc.Alternates = make(map[string]layer.Alternate, len(p.AlternateLayers))
			for src, alt := range p.AlternateLayers {
				lc.Alternates[src] = layer.Alternate{
					Layers:          alt.Layers,
					PropagateFilter: alt.PropagateFilter,
				}
			}
		}
		profiles = append(profiles, lc)
	}
	return layer.NewConfigs(profiles...)
}
