package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"multiselect/internal/host"
	"multiselect/pkg/config"
	"multiselect/pkg/geo"
	"multiselect/pkg/logging"
	"multiselect/pkg/query"
	"multiselect/pkg/tool"
	"multiselect/pkg/version"
)

const defaultConfigPath = "configs/multiselect.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	toolName   = flag.String("tool", "click", "Selection tool: click, box, circle, polygon, line, buffer")
	coords     = flag.String("coords", "", "Gesture vertices as 'x,y x,y ...' in map units")
	radius     = flag.String("radius", "", "Buffer radius, e.g. 25m or 0.5km (tools.default_radius or prompted when empty)")
	remove     = flag.Bool("remove", false, "Remove hits from the selection (modifier click)")
	profile    = flag.String("profile", "", "Layer profile to query")
)

// gesture is one selection action given on the command line.
type gesture struct {
	Tool    string
	Points  []orb.Point
	Radius  string
	Remove  bool
	Profile string
}

func main() {
	flag.Parse()
	_ = godotenv.Load(".env")

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	pts, err := parsePoints(*coords)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -coords: %v\n", err)
		os.Exit(2)
	}
	g := gesture{Tool: *toolName, Points: pts, Radius: *radius, Remove: *remove, Profile: *profile}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, g, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, g gesture, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Multiselect started", "version", version.Version)

	console := host.NewConsole(in, os.Stderr)
	app, err := host.Build(cfg, console.Options())
	if err != nil {
		return err
	}
	defer app.Close()

	if g.Radius == "" && cfg.Tools.DefaultRadius > 0 {
		g.Radius = cfg.Tools.DefaultRadius.String()
	}

	if g.Profile != "" {
		if err := app.Engine.UseLayerConfig(g.Profile); err != nil {
			return err
		}
	}

	app.Session.Activate()
	res, err := perform(ctx, app.Session, console, g)
	if err != nil {
		return err
	}
	if res.Incomplete() {
		fmt.Fprintf(os.Stderr, "results may be incomplete: %d layer(s) failed\n", len(res.Warnings))
	}
	slog.Info("Gesture done",
		"tool", g.Tool,
		"added", res.Outcome.Added,
		"removed", res.Outcome.Removed,
		"selected", app.Set.Len())

	for src, st := range app.Tracker.Snapshot() {
		slog.Debug("Source stats", "source", src, "requests", st.Requests, "failures", st.Failures,
			"cache_hits", st.CacheHits, "features", st.Features)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(host.FeatureCollection(app.Set.Items()))
}

// perform drives the session through the gesture the way a map would.
func perform(ctx context.Context, s *tool.Session, console *host.Console, g gesture) (query.Result, error) {
	st, ok := tool.ParseState(g.Tool)
	if !ok {
		return query.Result{}, fmt.Errorf("unknown tool %q", g.Tool)
	}
	if err := s.SelectTool(st); err != nil {
		return query.Result{}, err
	}

	pts := g.Points
	need := map[tool.State]int{
		tool.StateClick:   1,
		tool.StateBuffer:  1,
		tool.StateBox:     2,
		tool.StateCircle:  2,
		tool.StateLine:    2,
		tool.StatePolygon: 3,
	}
	if len(pts) < need[st] {
		return query.Result{}, fmt.Errorf("%s needs at least %d point(s), got %d", st, need[st], len(pts))
	}

	switch st {
	case tool.StateClick:
		return s.Click(ctx, pts[0], g.Remove)
	case tool.StateBox:
		return s.DrawEnd(ctx, geo.BoxQuery(orb.MultiPoint(pts).Bound()), g.Remove)
	case tool.StateCircle:
		center, edge := pts[0], pts[1]
		s.DrawStart(center)
		s.PointerMove(edge)
		return s.DrawEnd(ctx, geo.CircleQuery(center, planar.Distance(center, edge)), g.Remove)
	case tool.StatePolygon:
		ring := append(orb.Ring{}, pts...)
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		return s.DrawEnd(ctx, geo.PolygonQuery(orb.Polygon{ring}), g.Remove)
	case tool.StateLine:
		return s.DrawEnd(ctx, geo.LineQuery(orb.LineString(pts)), g.Remove)
	case tool.StateBuffer:
		return bufferAt(ctx, s, console, pts[0], g.Radius)
	}
	return query.Result{}, fmt.Errorf("unsupported tool %q", st)
}

// bufferAt picks the feature under p and buffers it, reading the radius from
// the console until it is valid when none was given.
func bufferAt(ctx context.Context, s *tool.Session, console *host.Console, p orb.Point, input string) (query.Result, error) {
	res, err := s.Click(ctx, p, false)
	if err != nil {
		return res, err
	}
	if _, stage := s.State(); stage != tool.StageRadius {
		slog.Info("Nothing to buffer at point", "x", p[0], "y", p[1])
		return res, nil
	}

	for {
		if input == "" {
			if input, err = console.ReadLine(); err != nil {
				return res, fmt.Errorf("no buffer radius given: %w", err)
			}
		}
		res, err = s.ConfirmRadius(ctx, input)
		if !errors.Is(err, tool.ErrInvalidRadius) {
			return res, err
		}
		input = ""
	}
}

// parsePoints reads "x,y x,y" or "x,y;x,y".
func parsePoints(s string) ([]orb.Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ';' })
	pts := make([]orb.Point, 0, len(fields))
	for _, f := range fields {
		xy := strings.Split(f, ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("bad vertex %q", f)
		}
		x, err := strconv.ParseFloat(xy[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad vertex %q: %w", f, err)
		}
		y, err := strconv.ParseFloat(xy[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad vertex %q: %w", f, err)
		}
		pts = append(pts, orb.Point{x, y})
	}
	return pts, nil
}
