package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const features = `{"type":"FeatureCollection","features":[
	{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[10,10]},"properties":{"name":"a"}},
	{"type":"Feature","id":"b","geometry":{"type":"Point","coordinates":[40,10]},"properties":{"name":"b"}},
	{"type":"Feature","id":"c","geometry":{"type":"Point","coordinates":[500,500]},"properties":{"name":"c"}}
]}`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "points.geojson")
	require.NoError(t, os.WriteFile(data, []byte(features), 0o644))

	cfg := fmt.Sprintf(`
log:
  server:
    path: %q
    level: debug
  requests:
    path: %q
cache:
  backend: none
map:
  projection: EPSG:3857
  resolution: 1
layers:
  - name: points
    type: vector
    path: %q
`, filepath.Join(dir, "server.log"), filepath.Join(dir, "requests.log"), data)

	path := filepath.Join(dir, "multiselect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func selectedIDs(t *testing.T, out []byte) []string {
	t.Helper()
	var fc struct {
		Features []struct {
			ID string `json:"id"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(out, &fc))
	ids := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		ids = append(ids, f.ID)
	}
	return ids
}

func TestRun(t *testing.T) {
	tests := []struct {
		name  string
		g     gesture
		stdin string
		want  []string
	}{
		{
			name: "Click",
			g:    gesture{Tool: "click", Points: []orb.Point{{10, 10}}},
			want: []string{"a"},
		},
		{
			name: "Box",
			g:    gesture{Tool: "box", Points: []orb.Point{{0, 0}, {50, 20}}},
			want: []string{"a", "b"},
		},
		{
			name: "Circle",
			g:    gesture{Tool: "circle", Points: []orb.Point{{10, 10}, {15, 10}}},
			want: []string{"a"},
		},
		{
			name: "Polygon",
			g:    gesture{Tool: "polygon", Points: []orb.Point{{0, 0}, {100, 0}, {100, 50}}},
			want: []string{"b"},
		},
		{
			name:  "BufferPrompted",
			g:     gesture{Tool: "buffer", Points: []orb.Point{{10, 10}}},
			stdin: "abc\n35m\n",
			want:  []string{"a", "b"},
		},
		{
			name: "BufferMiss",
			g:    gesture{Tool: "buffer", Points: []orb.Point{{200, 200}}, Radius: "10m"},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), writeConfig(t), tt.g, strings.NewReader(tt.stdin), &out)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, selectedIDs(t, out.Bytes()))
		})
	}
}

func TestRun_DefaultRadius(t *testing.T) {
	path := writeConfig(t)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("tools:\n  default_radius: 35m\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var out bytes.Buffer
	g := gesture{Tool: "buffer", Points: []orb.Point{{10, 10}}}
	require.NoError(t, run(context.Background(), path, g, nil, &out))
	assert.ElementsMatch(t, []string{"a", "b"}, selectedIDs(t, out.Bytes()))

	// an explicit radius wins
	out.Reset()
	g.Radius = "5m"
	require.NoError(t, run(context.Background(), path, g, nil, &out))
	assert.ElementsMatch(t, []string{"a"}, selectedIDs(t, out.Bytes()))
}

func TestRun_Errors(t *testing.T) {
	var out bytes.Buffer
	path := writeConfig(t)

	err := run(context.Background(), path, gesture{Tool: "lasso", Points: []orb.Point{{0, 0}}}, nil, &out)
	assert.Error(t, err)

	err = run(context.Background(), path, gesture{Tool: "box", Points: []orb.Point{{0, 0}}}, nil, &out)
	assert.ErrorContains(t, err, "at least 2")

	err = run(context.Background(), path, gesture{Tool: "click", Points: []orb.Point{{0, 0}}, Profile: "nope"}, nil, &out)
	assert.Error(t, err)
}

func TestParsePoints(t *testing.T) {
	pts, err := parsePoints("1,2 3.5,-4;5,6")
	require.NoError(t, err)
	assert.Equal(t, []orb.Point{{1, 2}, {3.5, -4}, {5, 6}}, pts)

	pts, err = parsePoints("")
	require.NoError(t, err)
	assert.Empty(t, pts)

	_, err = parsePoints("1,2,3")
	assert.Error(t, err)
	_, err = parsePoints("x,2")
	assert.Error(t, err)
}
