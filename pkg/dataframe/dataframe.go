// Package dataframe holds a batch of features ready for styling: decoded
// geometry, per-feature property columns and the GPU resources built from
// them.
//
// A Dataframe is created from orb geometries and float32 property columns,
// bound to a Renderer to upload buffers and textures, and freed when the
// source drops it. Every handle is overwritten with its freed sentinel on
// Free, and any later use fails with types.ErrResourceFreed.
package dataframe

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/types"
)

// Renderer is what a dataframe needs from the rendering layer.
type Renderer interface {
	Context() gpu.Context
	// RTTWidth is the width of the style textures. Feature i lives at texel
	// (i mod RTTWidth, i / RTTWidth).
	RTTWidth() int
	// PixelSize is the size of one screen pixel in world units at the
	// current zoom.
	PixelSize() float64
}

// Config describes a dataframe.
type Config struct {
	Type GeometryType
	// Center and Scale map world coordinates to the normalized coordinates
	// of Geometry: normalized = (world - Center) / Scale.
	Center orb.Point
	Scale  float64
	// Geometry holds one geometry per feature in normalized coordinates.
	Geometry   []orb.Geometry
	Properties map[string][]float32
	Metadata   *types.Metadata
	Active     bool
	// Size is the extent of the dataframe in world units.
	Size float64
}

// Dataframe is a batch of features and its GPU resources. Methods are safe
// for concurrent use.
type Dataframe struct {
	mu sync.Mutex

	typ         GeometryType
	center      orb.Point
	scale       float64
	size        float64
	active      bool
	geom        *Geometry
	numFeatures int
	properties  map[string][]float32
	meta        *types.Metadata

	renderer     Renderer
	vertexBuffer gpu.Buffer
	idBuffer     gpu.Buffer
	normalBuffer gpu.Buffer
	propertyTex  map[string]gpu.Texture
	styleTex     map[types.StyleProperty]gpu.Texture
	texWidth     int
	texHeight    int
	featureIDs   []float32
	freed        bool

	index *rtreego.Rtree
}

// New decodes the geometry and validates the property columns.
func New(cfg Config) (*Dataframe, error) {
	geom, err := Decode(cfg.Type, cfg.Geometry)
	if err != nil {
		return nil, err
	}
	scale := cfg.Scale
	if scale == 0 {
		scale = 1
	}
	d := &Dataframe{
		typ:          cfg.Type,
		center:       cfg.Center,
		scale:        scale,
		size:         cfg.Size,
		active:       cfg.Active,
		geom:         geom,
		numFeatures:  geom.NumFeatures(),
		properties:   make(map[string][]float32, len(cfg.Properties)),
		meta:         cfg.Metadata,
		vertexBuffer: gpu.FreedBuffer,
		idBuffer:     gpu.FreedBuffer,
		normalBuffer: gpu.FreedBuffer,
		propertyTex:  make(map[string]gpu.Texture),
		styleTex:     make(map[types.StyleProperty]gpu.Texture),
	}
	if err := d.checkLengths(cfg.Properties); err != nil {
		return nil, err
	}
	for name, values := range cfg.Properties {
		d.properties[name] = values
	}
	return d, nil
}

func (d *Dataframe) checkLengths(props map[string][]float32) error {
	for name, values := range props {
		if len(values) != d.numFeatures {
			return types.Errorf(types.ErrInvalidData, "property %q has %d values for %d features", name, len(values), d.numFeatures)
		}
	}
	return nil
}

// Type returns the geometry type.
func (d *Dataframe) Type() GeometryType { return d.typ }

// NumFeatures returns the number of features.
func (d *Dataframe) NumFeatures() int { return d.numFeatures }

// Geometry returns the decoded geometry.
func (d *Dataframe) Geometry() *Geometry { return d.geom }

// Metadata returns the metadata the properties were encoded with.
func (d *Dataframe) Metadata() *types.Metadata { return d.meta }

// Size returns the world extent.
func (d *Dataframe) Size() float64 { return d.size }

// Active reports whether the dataframe should be drawn.
func (d *Dataframe) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// SetActive marks the dataframe for drawing.
func (d *Dataframe) SetActive(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = active
}

// PropertyNames returns the sorted property names.
func (d *Dataframe) PropertyNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.propertyNames()
}

func (d *Dataframe) propertyNames() []string {
	names := make([]string, 0, len(d.properties))
	for name := range d.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Feature returns the property values of feature i.
func (d *Dataframe) Feature(i int) types.Feature {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.feature(i)
}

func (d *Dataframe) feature(i int) types.Feature {
	f := make(types.Feature, len(d.properties))
	for name, values := range d.properties {
		f[name] = float64(values[i])
	}
	return f
}

func errFreed() error {
	return types.NewError(types.ErrResourceFreed, "dataframe has been freed")
}

func errNotBound() error {
	return types.NewError(types.ErrNotBound, "dataframe is not bound to a renderer")
}

// Bind uploads the geometry, the feature IDs and the properties, and
// creates the style textures.
func (d *Dataframe) Bind(r Renderer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freed {
		return errFreed()
	}
	if d.renderer != nil {
		return types.NewError(types.ErrInvalidData, "dataframe is already bound")
	}
	w := r.RTTWidth()
	if w <= 0 {
		return types.Errorf(types.ErrInvalidData, "invalid style texture width %d", w)
	}
	gl := r.Context()
	d.renderer = r
	d.texWidth = w
	d.texHeight = (d.numFeatures + w - 1) / w
	if d.texHeight == 0 {
		d.texHeight = 1
	}

	d.vertexBuffer = gl.CreateBuffer()
	gl.BufferData(d.vertexBuffer, d.geom.Vertices)
	d.featureIDs = d.computeFeatureIDs()
	d.idBuffer = gl.CreateBuffer()
	gl.BufferData(d.idBuffer, d.featureIDs)
	if d.geom.Normals != nil {
		d.normalBuffer = gl.CreateBuffer()
		gl.BufferData(d.normalBuffer, d.geom.Normals)
	}
	for _, name := range d.propertyNames() {
		d.uploadProperty(gl, name, d.properties[name])
	}
	for _, p := range types.ShadedStyles {
		tex := gl.CreateTexture()
		gl.TexImage2D(tex, gpu.TextureSpec{Width: d.texWidth, Height: d.texHeight, Format: gpu.RGBA8, Filter: gpu.Nearest})
		d.styleTex[p] = tex
	}
	return nil
}

// computeFeatureIDs returns, per vertex, the texel center of its feature in
// the style textures.
func (d *Dataframe) computeFeatureIDs() []float32 {
	n := len(d.geom.Vertices) / 2
	ids := make([]float32, 2*n)
	w, h := float64(d.texWidth), float64(d.texHeight)
	feature := 0
	for v := 0; v < n; v++ {
		if d.typ == Points {
			feature = v
		} else {
			for feature < len(d.geom.Breakpoints) && 2*v >= d.geom.Breakpoints[feature] {
				feature++
			}
		}
		ids[2*v] = float32((float64(feature%d.texWidth) + 0.5) / w)
		ids[2*v+1] = float32((float64(feature/d.texWidth) + 0.5) / h)
	}
	return ids
}

// FeatureIDs returns the per-vertex feature IDs uploaded by Bind.
func (d *Dataframe) FeatureIDs() []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.featureIDs
}

// TextureSize returns the size of the property and style textures.
func (d *Dataframe) TextureSize() (width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.texWidth, d.texHeight
}

func (d *Dataframe) uploadProperty(gl gpu.Context, name string, values []float32) {
	if old, ok := d.propertyTex[name]; ok {
		gl.DeleteTexture(old)
	}
	tex := gl.CreateTexture()
	gl.TexImage2D(tex, gpu.TextureSpec{Width: d.texWidth, Height: d.texHeight, Format: gpu.AlphaFloat, Filter: gpu.Nearest, Floats: values})
	d.propertyTex[name] = tex
}

// AddProperties adds or replaces property columns. A bound dataframe uploads
// them at once, deleting the textures they replace.
func (d *Dataframe) AddProperties(props map[string][]float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freed {
		return errFreed()
	}
	if err := d.checkLengths(props); err != nil {
		return err
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d.properties[name] = props[name]
		if d.renderer != nil {
			d.uploadProperty(d.renderer.Context(), name, props[name])
		}
	}
	return nil
}

// PropertyTexture returns the texture of a property column.
func (d *Dataframe) PropertyTexture(name string) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freed {
		return gpu.FreedTexture, errFreed()
	}
	if d.renderer == nil {
		return gpu.FreedTexture, errNotBound()
	}
	tex, ok := d.propertyTex[name]
	if !ok {
		return gpu.FreedTexture, types.Errorf(types.ErrUnknownProperty, "dataframe has no property %q", name)
	}
	return tex, nil
}

// StyleTexture returns the style texture of a shaded style.
func (d *Dataframe) StyleTexture(p types.StyleProperty) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freed {
		return gpu.FreedTexture, errFreed()
	}
	tex, ok := d.styleTex[p]
	if !ok {
		if d.renderer == nil {
			return gpu.FreedTexture, errNotBound()
		}
		return gpu.FreedTexture, types.Errorf(types.ErrUnknownStyle, "no style texture for %s", p)
	}
	return tex, nil
}

// Buffers returns the vertex, feature ID and normal buffers. The normal
// buffer is gpu.FreedBuffer for geometry without normals.
func (d *Dataframe) Buffers() (vertices, featureIDs, normals gpu.Buffer, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freed {
		return gpu.FreedBuffer, gpu.FreedBuffer, gpu.FreedBuffer, errFreed()
	}
	if d.renderer == nil {
		return gpu.FreedBuffer, gpu.FreedBuffer, gpu.FreedBuffer, errNotBound()
	}
	return d.vertexBuffer, d.idBuffer, d.normalBuffer, nil
}

// Freed reports whether Free has run.
func (d *Dataframe) Freed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freed
}

// Free deletes every GPU resource and poisons the handles. It is
// idempotent.
func (d *Dataframe) Free() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freed {
		return
	}
	d.freed = true
	if d.renderer == nil {
		return
	}
	gl := d.renderer.Context()
	for name, tex := range d.propertyTex {
		gl.DeleteTexture(tex)
		d.propertyTex[name] = gpu.FreedTexture
	}
	for p, tex := range d.styleTex {
		gl.DeleteTexture(tex)
		d.styleTex[p] = gpu.FreedTexture
	}
	for _, b := range []*gpu.Buffer{&d.vertexBuffer, &d.idBuffer, &d.normalBuffer} {
		if *b != gpu.FreedBuffer {
			gl.DeleteBuffer(*b)
			*b = gpu.FreedBuffer
		}
	}
}

// String implements fmt.Stringer.
func (d *Dataframe) String() string {
	return fmt.Sprintf("dataframe(%s, %d features)", d.typ, d.numFeatures)
}
