package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"multiselect/pkg/model"
	"multiselect/pkg/tool"
)

// Console implements the session collaborators on a terminal.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole creates a console. With a nil reader the picker always takes the
// first feature.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{out: out}
	if in != nil {
		c.in = bufio.NewReader(in)
	}
	return c
}

// Options returns tool options using the console for every collaborator.
func (c *Console) Options() tool.Options {
	return tool.Options{
		Interactions: c,
		Tooltip:      c,
		Picker:       c,
		Prompt:       c,
	}
}

func (c *Console) Activate(s tool.State) {
	fmt.Fprintf(c.out, "tool: %s\n", s)
}

func (c *Console) Deactivate(tool.State) {}

func (c *Console) Show(text string, at orb.Point) {
	fmt.Fprintf(c.out, "radius %s at %.2f,%.2f\n", text, at[0], at[1])
}

func (c *Console) Hide() {}

func (c *Console) PromptRadius(_ orb.Geometry, lastErr error) {
	if lastErr != nil {
		fmt.Fprintf(c.out, "%v\n", lastErr)
	}
	fmt.Fprint(c.out, "buffer radius (m): ")
}

// ReadLine reads one trimmed line of input. It returns io.EOF without a reader.
func (c *Console) ReadLine() (string, error) {
	if c.in == nil {
		return "", io.EOF
	}
	line, err := c.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line != "" {
		return line, nil
	}
	return line, err
}

// Pick lists the hits and reads a 1-based choice. Empty input or EOF takes
// the first one, "q" cancels.
func (c *Console) Pick(_ context.Context, items []model.Item) (model.Item, bool) {
	if len(items) == 0 {
		return model.Item{}, false
	}
	if c.in == nil || len(items) == 1 {
		return items[0], true
	}

	for i, it := range items {
		fmt.Fprintf(c.out, "  %d) %s %v\n", i+1, layerName(it), it.Feature.ID)
	}
	for {
		fmt.Fprintf(c.out, "pick feature [1-%d]: ", len(items))
		line, err := c.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "q" {
			return model.Item{}, false
		}
		if line == "" {
			return items[0], true
		}
		if n, convErr := strconv.Atoi(line); convErr == nil && n >= 1 && n <= len(items) {
			return items[n-1], true
		}
		if err != nil {
			return items[0], true
		}
		fmt.Fprintln(c.out, "invalid choice")
	}
}

// FeatureCollection renders items with their layer and selection group as
// properties. Item features are cloned.
func FeatureCollection(items []model.Item) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, it := range items {
		f := geojson.NewFeature(orb.Clone(it.Feature.Geometry))
		f.ID = it.Feature.ID
		f.Properties = it.Feature.Properties.Clone()
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["layer"] = layerName(it)
		f.Properties["selection_group"] = it.SelectionGroup
		if it.SelectionGroupTitle != "" {
			f.Properties["selection_group_title"] = it.SelectionGroupTitle
		}
		fc.Append(f)
	}
	return fc
}

func layerName(it model.Item) string {
	if it.Layer == nil {
		return ""
	}
	return it.Layer.Name
}
