// Package layer ties a data source and a viz to a renderer.
//
// A Layer requests metadata from its source, compiles the viz against it,
// collects the dataframes the source delivers and draws them, one style
// program per shaded style and dataframe. Changes (Update, SetViz,
// BlendToViz) are atomic: each takes a change token before waiting for the
// source, and a change whose token was superseded while it waited fails with
// types.ErrStaleUpdate without touching the layer.
package layer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/sandrolain/goviz/pkg/dataframe"
	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/source"
	"github.com/sandrolain/goviz/pkg/types"
	"github.com/sandrolain/goviz/pkg/viz"
)

// Renderer is the rendering side of a layer.
type Renderer interface {
	Context() gpu.Context
	// PixelSize is the size of one screen pixel in world units.
	PixelSize() float64
	// Viewport is the visible world rectangle.
	Viewport() orb.Bound
}

// frameRenderer gives dataframes the layer's style texture width.
type frameRenderer struct {
	Renderer
	width int
}

func (r frameRenderer) RTTWidth() int { return r.width }

// Feature is a feature hit by GetFeaturesAtPosition.
type Feature struct {
	dataframe.Feature
	LayerID string
}

// Layer draws the data of a source styled by a viz.
type Layer struct {
	id      string
	options Options

	// change is the token of the latest change; a change commits only
	// while it still holds it.
	change atomic.Uint64

	// mu is the commit lock. It guards everything below except frames.
	mu       sync.Mutex
	renderer Renderer
	source   source.Source
	viz      *viz.Viz
	meta     *types.Metadata

	framesMu sync.Mutex
	frames   []*dataframe.Dataframe
	loaded   bool
}

// New creates a layer. Nothing is requested until a renderer is set.
func New(id string, src source.Source, v *viz.Viz, opts ...Option) (*Layer, error) {
	if id == "" {
		return nil, types.NewError(types.ErrInvalidParameter, "layer id must be a non empty string")
	}
	if src == nil {
		return nil, types.NewError(types.ErrInvalidParameter, "layer source is required")
	}
	if v == nil {
		return nil, types.NewError(types.ErrInvalidParameter, "layer viz is required")
	}
	l := &Layer{id: id, options: newOptions(opts), source: src, viz: v}
	if err := v.Claim(l); err != nil {
		return nil, err
	}
	return l, nil
}

// ID returns the layer id.
func (l *Layer) ID() string { return l.id }

// Viz returns the current viz.
func (l *Layer) Viz() *viz.Viz {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viz
}

// Source returns the current source.
func (l *Layer) Source() source.Source {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source
}

// Metadata returns the metadata of the last committed change.
func (l *Layer) Metadata() *types.Metadata {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.meta
}

// SetRenderer attaches the layer to a renderer and loads its source and viz.
func (l *Layer) SetRenderer(ctx context.Context, r Renderer) error {
	l.mu.Lock()
	l.renderer = r
	src, v := l.source, l.viz
	l.mu.Unlock()
	return l.Update(ctx, src, v)
}

// Update replaces the source and the viz. Without a renderer it only
// records them.
func (l *Layer) Update(ctx context.Context, src source.Source, v *viz.Viz) error {
	if src == nil || v == nil {
		return types.NewError(types.ErrInvalidParameter, "layer source and viz are required")
	}
	l.mu.Lock()
	attached := l.renderer != nil
	l.mu.Unlock()
	if !attached {
		if err := v.Claim(l); err != nil {
			return err
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.viz != v {
			l.viz.Release(l)
		}
		l.source, l.viz = src, v
		return nil
	}
	return l.commit(ctx, src, v)
}

// SetViz replaces the viz, keeping the source.
func (l *Layer) SetViz(ctx context.Context, v *viz.Viz) error {
	return l.Update(ctx, l.Source(), v)
}

// BlendToViz moves from the current viz to v over duration seconds. A
// negative duration uses viz.DefaultBlendDuration. Once the blend is over,
// Draw switches to v.
func (l *Layer) BlendToViz(ctx context.Context, v *viz.Viz, duration float64) error {
	if v == nil {
		return types.NewError(types.ErrInvalidParameter, "layer viz is required")
	}
	if err := v.Claim(l); err != nil {
		return err
	}
	blended, err := v.BlendFrom(l.Viz(), duration, l.options.Clock)
	if err == nil {
		err = l.commit(ctx, l.Source(), blended)
	}
	if err != nil {
		l.releaseUnused(v)
	}
	return err
}

// commit runs one atomic change: request metadata, then, if no newer change
// was issued meanwhile, compile and commit. A change that does not commit
// gives v back.
func (l *Layer) commit(ctx context.Context, src source.Source, v *viz.Viz) (err error) {
	if err := v.Claim(l); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			l.releaseUnused(v)
		}
	}()
	token := l.change.Add(1)
	meta, err := src.RequestMetadata(ctx, v)
	if err != nil {
		return fmt.Errorf("requesting metadata: %w", err)
	}
	if l.change.Load() != token {
		return l.stale(token)
	}

	l.mu.Lock()
	if l.change.Load() != token {
		l.mu.Unlock()
		return l.stale(token)
	}
	if l.renderer == nil {
		l.mu.Unlock()
		return types.NewError(types.ErrNotBound, "layer has no renderer")
	}
	if err := v.CompileShaders(l.renderer.Context(), meta); err != nil {
		l.mu.Unlock()
		return err
	}
	prevSource := l.source
	if prevSource != src {
		l.framesMu.Lock()
		l.loaded = false
		l.framesMu.Unlock()
	}
	src.BindLayer(l.onDataframeAdded, l.onDataframeRemoved, l.onDataLoaded)
	if l.viz != v && l.viz != nil {
		l.viz.Release(l)
	}
	l.source, l.viz, l.meta = src, v, meta
	viewport := l.renderer.Viewport()
	l.mu.Unlock()

	if prevSource != src && prevSource != nil {
		prevSource.Free()
	}
	l.options.Logger.Debug("committed layer change", "layer", l.id, "change", token)
	return src.RequestData(ctx, viewport)
}

// releaseUnused releases v unless it is the committed viz or the target of
// the committed blend.
func (l *Layer) releaseUnused(v *viz.Viz) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.viz == v || l.viz.Target() == v {
		return
	}
	v.Release(l)
}

func (l *Layer) stale(token uint64) error {
	l.options.Logger.Debug("dropping stale layer change", "layer", l.id, "change", token)
	return types.Errorf(types.ErrStaleUpdate, "layer %s: another change was made before change %d committed", l.id, token)
}

// RequestData asks the source for the data of the current viewport.
func (l *Layer) RequestData(ctx context.Context) error {
	l.mu.Lock()
	if l.meta == nil || l.renderer == nil {
		l.mu.Unlock()
		return nil
	}
	src, viewport := l.source, l.renderer.Viewport()
	l.mu.Unlock()
	return src.RequestData(ctx, viewport)
}

func (l *Layer) onDataframeAdded(d *dataframe.Dataframe) {
	l.mu.Lock()
	r := l.renderer
	l.mu.Unlock()
	if r == nil {
		return
	}
	if err := d.Bind(frameRenderer{Renderer: r, width: l.options.RTTWidth}); err != nil {
		l.options.Logger.Warn("binding dataframe", "layer", l.id, "dataframe", d, "error", err)
		return
	}
	l.framesMu.Lock()
	defer l.framesMu.Unlock()
	l.frames = append(l.frames, d)
}

func (l *Layer) onDataframeRemoved(d *dataframe.Dataframe) {
	l.framesMu.Lock()
	defer l.framesMu.Unlock()
	for i, f := range l.frames {
		if f == d {
			l.frames = append(l.frames[:i], l.frames[i+1:]...)
			return
		}
	}
}

func (l *Layer) onDataLoaded() {
	l.framesMu.Lock()
	defer l.framesMu.Unlock()
	l.loaded = true
}

// Loaded reports whether the source finished delivering the data of the
// last request.
func (l *Layer) Loaded() bool {
	l.framesMu.Lock()
	defer l.framesMu.Unlock()
	return l.loaded
}

// Dataframes returns the dataframes currently held.
func (l *Layer) Dataframes() []*dataframe.Dataframe {
	l.framesMu.Lock()
	defer l.framesMu.Unlock()
	return append([]*dataframe.Dataframe(nil), l.frames...)
}

// NumFeatures returns the number of features held.
func (l *Layer) NumFeatures() int {
	n := 0
	for _, d := range l.Dataframes() {
		n += d.NumFeatures()
	}
	return n
}

// Animated reports whether the layer must be redrawn every frame.
func (l *Layer) Animated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viz != nil && (l.viz.Animated() || l.viz.Blending())
}

// Draw renders the style textures of every active dataframe.
func (l *Layer) Draw() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.renderer == nil || l.meta == nil {
		return nil
	}
	gl := l.renderer.Context()
	l.finishBlend(gl)
	for _, d := range l.Dataframes() {
		if !d.Active() {
			continue
		}
		w, h := d.TextureSize()
		for _, p := range types.ShadedStyles {
			c, err := l.viz.Shader(p)
			if err != nil {
				return err
			}
			target, err := d.StyleTexture(p)
			if err != nil {
				return err
			}
			if err := c.Bind(gl, d.PropertyTexture); err != nil {
				return fmt.Errorf("style %s: %w", p, err)
			}
			gl.DrawStyle(target, w, h)
		}
	}
	return nil
}

// finishBlend swaps a finished blend for its target. Caller holds l.mu.
func (l *Layer) finishBlend(gl gpu.Context) {
	if l.viz.Blending() {
		return
	}
	blended := l.viz
	target := blended.Finish(gl)
	if target == blended {
		return
	}
	if err := target.CompileShaders(gl, l.meta); err != nil {
		l.options.Logger.Warn("compiling blend target", "layer", l.id, "error", err)
		return
	}
	blended.Release(l)
	l.viz = target
	l.options.Logger.Debug("finished blend", "layer", l.id)
}

// GetFeaturesAtPosition returns the features drawn at world position p.
// With an order style, hits are sorted by that style.
func (l *Layer) GetFeaturesAtPosition(p orb.Point) ([]Feature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.viz == nil || l.meta == nil {
		return nil, nil
	}
	type keyed struct {
		Feature
		key float64
	}
	order := l.viz.Order()
	var hits []keyed
	for _, d := range l.Dataframes() {
		found, err := d.GetFeaturesAtPosition(p, l.viz)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			k := keyed{Feature: Feature{Feature: f, LayerID: l.id}}
			if prop, ok := types.ParseStyleProperty(order.By); ok {
				if k.key, err = l.viz.Number(prop, d.Feature(f.Index)); err != nil {
					return nil, err
				}
			}
			hits = append(hits, k)
		}
	}
	if order.By != "" {
		sort.SliceStable(hits, func(i, j int) bool {
			if order.Descending {
				return hits[i].key > hits[j].key
			}
			return hits[i].key < hits[j].key
		})
	}
	features := make([]Feature, len(hits))
	for i, h := range hits {
		features[i] = h.Feature
	}
	return features, nil
}

// Free releases the source, the dataframes and the viz programs.
func (l *Layer) Free() {
	l.mu.Lock()
	src, v, r := l.source, l.viz, l.renderer
	l.mu.Unlock()
	src.Free()
	if v != nil && r != nil {
		v.Free(r.Context())
	}
}
