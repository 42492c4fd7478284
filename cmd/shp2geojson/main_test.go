package main

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiselect/pkg/source"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "wells.shp")
	out := filepath.Join(dir, "wells.geojson")

	w, err := shp.Create(in, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))
	for i, name := range []string{"a", "b", "c"} {
		n := w.Write(&shp.Point{X: float64(i), Y: float64(i)})
		require.NoError(t, w.WriteAttribute(int(n), 0, name))
	}
	w.Close()

	n, err := run(in, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	v, err := source.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())

	_, err = run(filepath.Join(dir, "missing.shp"), out)
	assert.Error(t, err)
}
