package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/source"
)

// Converts a shapefile layer into the GeoJSON form served to vector layers.
func main() {
	inputPath := flag.String("input", "", "Path to input .shp file")
	outputPath := flag.String("output", "", "Path to output .geojson file")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" {
		flag.Usage()
		log.Fatal("Input and output paths are required")
	}

	n, err := run(*inputPath, *outputPath)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Successfully converted %d features to %s\n", n, *outputPath)
}

func run(inputPath, outputPath string) (int, error) {
	v, err := source.LoadShapefile(inputPath)
	if err != nil {
		return 0, err
	}

	// record order, so repeated conversions produce identical files
	features := v.Features()
	sort.Slice(features, func(i, j int) bool {
		a, _ := features[i].ID.(int)
		b, _ := features[j].ID.(int)
		return a < b
	})

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write output file: %w", err)
	}
	return len(fc.Features), nil
}
