// Package wfs retrieves vector features from OGC Web Feature Services.
package wfs

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/geo"
)

// DefaultGeometryName is used when a layer does not name its geometry column.
const DefaultGeometryName = "geom"

// Getter fetches a URL, optionally through a response cache.
type Getter interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
}

// Query describes one GetFeature request.
type Query struct {
	URL          string
	TypeName     string
	GeometryName string
	Filter       string // CQL, combined with the extent
	Extent       *orb.Bound
	SRS          geo.Projection
	MaxFeatures  int
}

// Client issues GetFeature requests.
type Client struct {
	http  Getter
	cache bool
}

// New creates a client. When cache is set responses are stored by URL.
func New(g Getter, cache bool) *Client {
	return &Client{http: g, cache: cache}
}

// GetFeatures returns the features of q.TypeName inside q.Extent.
func (c *Client) GetFeatures(ctx context.Context, q Query) ([]*geojson.Feature, error) {
	u, err := BuildURL(q)
	if err != nil {
		return nil, err
	}
	key := ""
	if c.cache {
		key = "wfs:" + u
	}
	body, err := c.http.Get(ctx, u, key)
	if err != nil {
		return nil, fmt.Errorf("wfs %s: %w", q.TypeName, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("wfs %s: decode response: %w", q.TypeName, err)
	}
	return fc.Features, nil
}

// BuildURL renders a GetFeature request returning GeoJSON. A layer filter
// and the extent are combined into a single CQL expression since servers
// reject BBOX together with CQL_FILTER.
func BuildURL(q Query) (string, error) {
	if q.URL == "" {
		return "", fmt.Errorf("wfs %s: no service url", q.TypeName)
	}
	base, err := url.Parse(q.URL)
	if err != nil {
		return "", fmt.Errorf("wfs %s: %w", q.TypeName, err)
	}

	srs := string(q.SRS)
	params := base.Query()
	params.Set("service", "WFS")
	params.Set("version", "1.1.0")
	params.Set("request", "GetFeature")
	params.Set("typeName", q.TypeName)
	params.Set("outputFormat", "application/json")
	if srs != "" {
		params.Set("srsName", srs)
	}
	if q.MaxFeatures > 0 {
		params.Set("maxFeatures", strconv.Itoa(q.MaxFeatures))
	}

	switch {
	case q.Filter != "" && q.Extent != nil:
		geom := q.GeometryName
		if geom == "" {
			geom = DefaultGeometryName
		}
		params.Set("CQL_FILTER", fmt.Sprintf("(%s) AND BBOX(%s,%s,'%s')", q.Filter, geom, formatBound(*q.Extent, false), cqlCRS(q.SRS)))
	case q.Filter != "":
		params.Set("CQL_FILTER", q.Filter)
	case q.Extent != nil:
		params.Set("bbox", bboxParam(*q.Extent, q.SRS))
	}

	base.RawQuery = params.Encode()
	return base.String(), nil
}

// wgs84URN names EPSG:4326 with the latitude/longitude axis order WFS 1.1.0
// prescribes for it.
const wgs84URN = "urn:ogc:def:crs:EPSG::4326"

// bboxParam renders the bbox parameter with its CRS. Geographic extents are
// sent as lat/lon under the URN code so servers cannot guess the axis order.
func bboxParam(b orb.Bound, srs geo.Projection) string {
	switch {
	case srs == "":
		return formatBound(b, false)
	case srs.Canonical() == geo.WGS84:
		return formatBound(b, true) + "," + wgs84URN
	}
	return formatBound(b, false) + "," + string(srs)
}

// cqlCRS names the CRS of a CQL BBOX written in x/y order.
func cqlCRS(srs geo.Projection) string {
	if srs.Canonical() == geo.WGS84 {
		return "CRS:84"
	}
	return string(srs)
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
