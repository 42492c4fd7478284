package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Load builds a vector source from a GeoJSON or shapefile on disk, chosen by
// file extension.
func Load(path string) (*Vector, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return LoadShapefile(path)
	case ".geojson", ".json":
		return LoadGeoJSON(path)
	}
	return nil, fmt.Errorf("unsupported layer file %s", path)
}

// LoadGeoJSON reads a FeatureCollection file.
func LoadGeoJSON(path string) (*Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson %s: %w", path, err)
	}
	return NewVector(fc.Features...), nil
}

// LoadShapefile reads every shape and its attributes. Shapes get their record
// number as feature id.
func LoadShapefile(path string) (*Vector, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = f.String()
	}

	var features []*geojson.Feature
	for shape.Next() {
		n, p := shape.Shape()

		var geometry orb.Geometry
		switch s := p.(type) {
		case *shp.Null:
			continue
		case *shp.PolyLine:
			geometry = convertPolyLine(s)
		case *shp.Polygon:
			geometry = convertPolygon(s)
		case *shp.Point:
			geometry = orb.Point{s.X, s.Y}
		case *shp.MultiPoint:
			mp := make(orb.MultiPoint, 0, len(s.Points))
			for _, pt := range s.Points {
				mp = append(mp, orb.Point{pt.X, pt.Y})
			}
			geometry = mp
		default:
			continue
		}

		f := geojson.NewFeature(geometry)
		f.ID = n
		for i, name := range fieldNames {
			f.Properties[name] = shape.ReadAttribute(n, i)
		}
		features = append(features, f)
	}

	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}
	return NewVector(features...), nil
}

func partRange(parts []int32, numPoints int32, i int) (start, end int32) {
	start = parts[i]
	end = numPoints
	if i < len(parts)-1 {
		end = parts[i+1]
	}
	return start, end
}

func convertPolyLine(s *shp.PolyLine) orb.Geometry {
	var multiline orb.MultiLineString
	for i := 0; i < int(s.NumParts); i++ {
		start, end := partRange(s.Parts, s.NumPoints, i)
		var line orb.LineString
		for j := start; j < end; j++ {
			line = append(line, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		multiline = append(multiline, line)
	}
	if len(multiline) == 1 {
		return multiline[0]
	}
	return multiline
}

// convertPolygon treats all parts as rings of a single polygon.
func convertPolygon(s *shp.Polygon) orb.Polygon {
	var poly orb.Polygon
	for i := 0; i < int(s.NumParts); i++ {
		start, end := partRange(s.Parts, s.NumPoints, i)
		var ring orb.Ring
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		poly = append(poly, ring)
	}
	return poly
}
