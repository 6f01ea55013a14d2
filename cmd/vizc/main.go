// Command vizc compiles a viz file against a GeoJSON dataset and prints the
// generated style shaders.
//
// Usage:
//
//	vizc -data points.geojson [-style color] [-log-level debug] style.viz
//
// The dataset is loaded through the GeoJSON source, the viz is compiled by a
// layer bound to an in-memory rendering context and one style pass is drawn,
// so every error a real renderer would hit is reported.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/paulmach/orb"

	"github.com/sandrolain/goviz"
	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/gpu/headless"
	"github.com/sandrolain/goviz/pkg/layer"
	"github.com/sandrolain/goviz/pkg/parser"
	"github.com/sandrolain/goviz/pkg/source/geojson"
	"github.com/sandrolain/goviz/pkg/types"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// renderer is a fixed viewport over an in-memory context.
type renderer struct {
	gl       *headless.Context
	viewport orb.Bound
	height   int
}

func (r *renderer) Context() gpu.Context { return r.gl }
func (r *renderer) Viewport() orb.Bound  { return r.viewport }

func (r *renderer) PixelSize() float64 {
	h := r.viewport.Top() - r.viewport.Bottom()
	if h == 0 {
		h = 1
	}
	return h / float64(r.height)
}

func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	fs := flag.NewFlagSet("vizc", flag.ContinueOnError)
	fs.SetOutput(outW)
	dataPath := fs.String("data", "", "GeoJSON FeatureCollection to compile against (required)")
	style := fs.String("style", "", "print only this style (color, width, strokeColor, strokeWidth, filter)")
	height := fs.Int("height", 1024, "canvas height in pixels, used to size points and lines")
	rttWidth := fs.Int("rtt-width", layer.DefaultRTTWidth, "style texture width")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "text", "log format (text, json)")
	version := fs.Bool("version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: vizc [flags] <file.viz>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *version {
		fmt.Fprintf(outW, "vizc %s\n", goviz.Version())
		return nil
	}
	if fs.NArg() != 1 || *dataPath == "" {
		fs.Usage()
		return errors.New("a viz file and -data are required")
	}
	styles := types.ShadedStyles
	if *style != "" {
		p, ok := types.ParseStyleProperty(*style)
		if !ok || p == types.StyleOrder {
			return fmt.Errorf("unknown shaded style %q", *style)
		}
		styles = []types.StyleProperty{p}
	}
	if *height <= 0 {
		return fmt.Errorf("invalid -height %d", *height)
	}

	logger, err := newLogger(*logLevel, *logFormat, errW)
	if err != nil {
		return err
	}
	vizPath := fs.Arg(0)

	src, err := os.ReadFile(vizPath)
	if err != nil {
		return err
	}
	v, err := goviz.ParseViz(string(src), parser.WithFilename(vizPath), parser.WithLogger(logger))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*dataPath)
	if err != nil {
		return err
	}
	dataset, err := geojson.Parse(data, geojson.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("%s: %w", *dataPath, err)
	}

	gl := headless.New(headless.WithLogger(logger))
	l, err := layer.New("vizc", dataset, v, layer.WithLogger(logger), layer.WithRTTWidth(*rttWidth))
	if err != nil {
		return err
	}
	defer l.Free()
	if err := l.SetRenderer(ctx, &renderer{gl: gl, viewport: dataset.Bound(), height: *height}); err != nil {
		return err
	}
	if err := l.Draw(); err != nil {
		return err
	}
	if errs := gl.Errors(); len(errs) > 0 {
		return fmt.Errorf("rendering context errors: %w", errors.Join(errs...))
	}

	for _, p := range styles {
		c, err := l.Viz().Shader(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(outW, "// %s\n%s\n", p, c.Shader.FragmentSource)
	}
	logger.Info("compiled viz",
		"file", vizPath,
		"features", l.NumFeatures(),
		"dataframes", len(l.Dataframes()),
		"draws", len(gl.Draws()),
	)
	return nil
}
