// Package geojson implements source.Source over an in-memory GeoJSON
// FeatureCollection.
//
// Metadata is inferred once from the feature properties. Every data request
// builds one dataframe per geometry kind (points, lines, polygons) from the
// features intersecting the viewport, with vertices normalized to the
// viewport center and half extent.
package geojson

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/sandrolain/goviz/pkg/dataframe"
	"github.com/sandrolain/goviz/pkg/source"
	"github.com/sandrolain/goviz/pkg/types"
	"github.com/sandrolain/goviz/pkg/viz"
)

var _ source.Source = (*Source)(nil)

// Options configures a Source.
type Options struct {
	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option configures Options.
type Option func(*Options)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// Source serves a GeoJSON FeatureCollection. It is safe for concurrent use.
type Source struct {
	options  Options
	features []*orbjson.Feature
	kinds    []dataframe.GeometryType
	meta     *types.Metadata

	mu      sync.Mutex
	added   func(*dataframe.Dataframe)
	removed func(*dataframe.Dataframe)
	loaded  func()
	frames  []*dataframe.Dataframe
	freed   bool
}

// Parse decodes a GeoJSON FeatureCollection.
func Parse(data []byte, opts ...Option) (*Source, error) {
	fc, err := orbjson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidData, "decoding feature collection").WithCause(err)
	}
	return New(fc, opts...)
}

// New builds a source from fc. Features must hold a Point, LineString,
// MultiLineString, Polygon or MultiPolygon.
func New(fc *orbjson.FeatureCollection, opts ...Option) (*Source, error) {
	s := &Source{}
	for _, opt := range opts {
		opt(&s.options)
	}
	if s.options.Logger == nil {
		s.options.Logger = slog.Default()
	}
	s.features = fc.Features
	s.kinds = make([]dataframe.GeometryType, len(fc.Features))
	for i, f := range fc.Features {
		kind, ok := geometryKind(f.Geometry)
		if !ok {
			name := "null"
			if f.Geometry != nil {
				name = f.Geometry.GeoJSONType()
			}
			return nil, types.Errorf(types.ErrInvalidData, "feature %d: unsupported geometry %s", i, name)
		}
		s.kinds[i] = kind
	}
	columns, skipped := inferColumns(fc.Features)
	if len(skipped) > 0 {
		s.options.Logger.Debug("skipped non scalar properties", "properties", skipped)
	}
	s.meta = types.NewMetadata(columns...)
	s.options.Logger.Debug("loaded geojson source", "features", len(s.features), "columns", len(columns))
	return s, nil
}

func geometryKind(g orb.Geometry) (dataframe.GeometryType, bool) {
	switch g.(type) {
	case orb.Point:
		return dataframe.Points, true
	case orb.LineString, orb.MultiLineString:
		return dataframe.Lines, true
	case orb.Polygon, orb.MultiPolygon:
		return dataframe.Polygons, true
	}
	return "", false
}

// Bound returns the bounding box of every feature.
func (s *Source) Bound() orb.Bound {
	if len(s.features) == 0 {
		return orb.Bound{}
	}
	b := s.features[0].Geometry.Bound()
	for _, f := range s.features[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// Metadata returns the inferred metadata.
func (s *Source) Metadata() *types.Metadata {
	return s.meta
}

// RequestMetadata returns the source metadata after checking that every
// property v reads exists.
func (s *Source) RequestMetadata(ctx context.Context, v *viz.Viz) (*types.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v != nil {
		for _, name := range v.PropertyNames() {
			if _, ok := s.meta.Column(name); !ok {
				return nil, types.Errorf(types.ErrUnknownProperty, "property %q does not exist in the source", name)
			}
		}
	}
	return s.meta, nil
}

// BindLayer implements source.Source.
func (s *Source) BindLayer(added, removed func(*dataframe.Dataframe), loaded func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added, s.removed, s.loaded = added, removed, loaded
}

// RequestData builds the dataframes of viewport, replacing the previous
// ones. The callbacks run outside the source lock.
func (s *Source) RequestData(ctx context.Context, viewport orb.Bound) error {
	s.mu.Lock()
	if s.freed {
		s.mu.Unlock()
		return types.NewError(types.ErrResourceFreed, "source has been freed")
	}
	if s.added == nil {
		s.mu.Unlock()
		return types.NewError(types.ErrNotBound, "source is not bound to a layer")
	}
	added, removed, loaded := s.added, s.removed, s.loaded
	old := s.frames
	s.frames = nil
	s.mu.Unlock()

	for _, d := range old {
		if removed != nil {
			removed(d)
		}
		d.Free()
	}

	frames, err := s.build(ctx, viewport)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = frames
	s.mu.Unlock()
	for _, d := range frames {
		added(d)
	}
	if loaded != nil {
		loaded()
	}
	return nil
}

func (s *Source) build(ctx context.Context, viewport orb.Bound) ([]*dataframe.Dataframe, error) {
	center := viewport.Center()
	scale := math.Max(viewport.Right()-viewport.Left(), viewport.Top()-viewport.Bottom()) / 2
	if scale == 0 {
		scale = 1
	}
	normalize := func(p orb.Point) orb.Point {
		return orb.Point{(p[0] - center[0]) / scale, (p[1] - center[1]) / scale}
	}

	var frames []*dataframe.Dataframe
	for _, kind := range []dataframe.GeometryType{dataframe.Points, dataframe.Lines, dataframe.Polygons} {
		if err := ctx.Err(); err != nil {
			for _, d := range frames {
				d.Free()
			}
			return nil, err
		}
		var geoms []orb.Geometry
		var selected []*orbjson.Feature
		for i, f := range s.features {
			if s.kinds[i] != kind || !f.Geometry.Bound().Intersects(viewport) {
				continue
			}
			geoms = append(geoms, project.Geometry(orb.Clone(f.Geometry), normalize))
			selected = append(selected, f)
		}
		if len(selected) == 0 {
			continue
		}
		d, err := dataframe.New(dataframe.Config{
			Type:       kind,
			Center:     center,
			Scale:      scale,
			Geometry:   geoms,
			Properties: s.encode(selected),
			Metadata:   s.meta,
			Active:     true,
			Size:       2 * scale,
		})
		if err != nil {
			for _, d := range frames {
				d.Free()
			}
			return nil, err
		}
		s.options.Logger.Debug("built dataframe", "type", kind, "features", len(selected))
		frames = append(frames, d)
	}
	return frames, nil
}

func (s *Source) encode(features []*orbjson.Feature) map[string][]float32 {
	props := make(map[string][]float32, len(s.meta.Columns))
	for ci := range s.meta.Columns {
		c := &s.meta.Columns[ci]
		values := make([]float32, len(features))
		for i, f := range features {
			v, ok := f.Properties[c.Name]
			if !ok && c.Name == IDProperty {
				v = f.ID
			}
			values[i] = encode(s.meta, c, v)
		}
		props[c.Name] = values
	}
	return props
}

// Free removes and frees every dataframe. Later requests fail with
// types.ErrResourceFreed.
func (s *Source) Free() {
	s.mu.Lock()
	frames, removed := s.frames, s.removed
	s.frames = nil
	s.freed = true
	s.mu.Unlock()
	for _, d := range frames {
		if removed != nil {
			removed(d)
		}
		d.Free()
	}
}
