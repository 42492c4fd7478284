// Package wms queries raster map services through GetFeatureInfo.
package wms

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/geo"
)

const (
	// DefaultBufferParam is the vendor parameter that widens the search
	// radius around the queried pixel.
	DefaultBufferParam  = "BUFFER"
	DefaultFeatureCount = 1000
	FormatJSON          = "application/json"
	FormatHTML          = "text/html"
)

// Getter fetches a URL, optionally through a response cache.
type Getter interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
}

// InfoQuery describes a GetFeatureInfo request around a single pixel.
type InfoQuery struct {
	URL        string
	Layer      string
	Filter     string
	InfoFormat string
	Projection geo.Projection

	Center     orb.Point
	Resolution float64
	// BufferPx is the search radius around the centre pixel.
	BufferPx     int
	BufferParam  string
	FeatureCount int
}

// ExtentQuery builds an info query whose single pixel sits at the centre of
// ext and whose search radius reaches every corner of it. The service cannot
// query by extent, so the window is sized to hold the whole radius.
func ExtentQuery(ext orb.Bound, resolution float64) InfoQuery {
	if resolution <= 0 {
		resolution = 1
	}
	halfDiag := math.Hypot(ext.Max[0]-ext.Min[0], ext.Max[1]-ext.Min[1]) / 2
	return InfoQuery{
		Center:       ext.Center(),
		Resolution:   resolution,
		BufferPx:     int(math.Ceil(halfDiag / resolution)),
		FeatureCount: DefaultFeatureCount,
		InfoFormat:   FormatJSON,
	}
}

// PixelQuery builds a plain single-pixel info query.
func PixelQuery(center orb.Point, resolution float64) InfoQuery {
	return InfoQuery{Center: center, Resolution: resolution, FeatureCount: 1}
}

// Window returns the image size and the pixel position of the centre.
func (q InfoQuery) Window() (size, pixel int) {
	return 2*q.BufferPx + 1, q.BufferPx
}

// BBox returns the map extent covered by the request window.
func (q InfoQuery) BBox() orb.Bound {
	size, _ := q.Window()
	half := float64(size) / 2 * q.Resolution
	return orb.Bound{
		Min: orb.Point{q.Center[0] - half, q.Center[1] - half},
		Max: orb.Point{q.Center[0] + half, q.Center[1] + half},
	}
}

// BuildURL renders the GetFeatureInfo request.
func BuildURL(q InfoQuery) (string, error) {
	if q.URL == "" {
		return "", fmt.Errorf("wms %s: no service url", q.Layer)
	}
	if q.Resolution <= 0 {
		return "", fmt.Errorf("wms %s: resolution must be positive", q.Layer)
	}
	base, err := url.Parse(q.URL)
	if err != nil {
		return "", fmt.Errorf("wms %s: %w", q.Layer, err)
	}

	size, pixel := q.Window()
	bbox := q.BBox()
	format := q.InfoFormat
	if format == "" {
		format = FormatJSON
	}
	count := q.FeatureCount
	if count <= 0 {
		count = 1
	}

	params := base.Query()
	params.Set("SERVICE", "WMS")
	params.Set("VERSION", "1.3.0")
	params.Set("REQUEST", "GetFeatureInfo")
	params.Set("LAYERS", q.Layer)
	params.Set("QUERY_LAYERS", q.Layer)
	params.Set("STYLES", "")
	params.Set("FORMAT", "image/png")
	params.Set("INFO_FORMAT", format)
	params.Set("FEATURE_COUNT", strconv.Itoa(count))
	params.Set("CRS", string(q.Projection))
	params.Set("WIDTH", strconv.Itoa(size))
	params.Set("HEIGHT", strconv.Itoa(size))
	params.Set("I", strconv.Itoa(pixel))
	params.Set("J", strconv.Itoa(pixel))
	// WMS 1.3.0 takes EPSG:4326 in latitude/longitude order; CRS:84 stays x/y.
	params.Set("BBOX", formatBound(bbox, q.Projection == geo.WGS84))
	if q.BufferPx > 0 {
		name := q.BufferParam
		if name == "" {
			name = DefaultBufferParam
		}
		params.Set(name, strconv.Itoa(q.BufferPx))
	}
	if q.Filter != "" {
		params.Set("CQL_FILTER", q.Filter)
	}

	base.RawQuery = params.Encode()
	return base.String(), nil
}

// Client issues feature-info requests.
type Client struct {
	http  Getter
	cache bool
}

// New creates a client. When cache is set responses are stored by URL.
func New(g Getter, cache bool) *Client {
	return &Client{http: g, cache: cache}
}

// GetFeatures runs a JSON feature-info query and decodes the features.
func (c *Client) GetFeatures(ctx context.Context, q InfoQuery) ([]*geojson.Feature, error) {
	if q.InfoFormat == "" {
		q.InfoFormat = FormatJSON
	}
	if !strings.Contains(q.InfoFormat, "json") {
		return nil, fmt.Errorf("wms %s: unsupported info format %q", q.Layer, q.InfoFormat)
	}
	body, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("wms %s: decode response: %w", q.Layer, err)
	}
	return fc.Features, nil
}

// Preview runs an HTML feature-info query and returns the body markup, or ""
// when the service found nothing at the pixel.
func (c *Client) Preview(ctx context.Context, q InfoQuery) (string, error) {
	q.InfoFormat = FormatHTML
	body, err := c.get(ctx, q)
	if err != nil {
		return "", err
	}
	return ExtractBody(strings.NewReader(string(body)))
}

func (c *Client) get(ctx context.Context, q InfoQuery) ([]byte, error) {
	u, err := BuildURL(q)
	if err != nil {
		return nil, err
	}
	key := ""
	if c.cache {
		key = "wms:" + u
	}
	body, err := c.http.Get(ctx, u, key)
	if err != nil {
		return nil, fmt.Errorf("wms %s: %w", q.Layer, err)
	}
	return body, nil
}

func formatBound(b orb.Bound, latLon bool) string {
	vals := []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	if latLon {
		vals = []float64{b.Min[1], b.Min[0], b.Max[1], b.Max[0]}
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
