package dataframe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/gpu/headless"
	"github.com/sandrolain/goviz/pkg/types"
)

type renderer struct {
	gl        *headless.Context
	width     int
	pixelSize float64
}

func (r *renderer) Context() gpu.Context { return r.gl }
func (r *renderer) RTTWidth() int        { return r.width }
func (r *renderer) PixelSize() float64   { return r.pixelSize }

func newRenderer(width int) *renderer {
	return &renderer{gl: headless.New(), width: width, pixelSize: 0.01}
}

// styles returns fixed style values, or a per-feature filter read from the
// "visible" property when present.
type styles map[types.StyleProperty]float64

func (s styles) Number(p types.StyleProperty, f types.Feature) (float64, error) {
	if p == types.StyleFilter {
		if v, ok := f["visible"]; ok {
			return v, nil
		}
		return 1, nil
	}
	return s[p], nil
}

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		typ         GeometryType
		geoms       []orb.Geometry
		features    int
		vertices    int
		breakpoints []int
	}{
		{"points", Points, []orb.Geometry{orb.Point{0, 0}, orb.Point{1, 1}}, 2, 4, nil},
		{"line", Lines, []orb.Geometry{orb.LineString{{0, 0}, {1, 0}, {1, 1}}}, 1, 24, []int{24}},
		{"zero length segment", Lines, []orb.Geometry{orb.LineString{{0, 0}, {0, 0}, {1, 0}}}, 1, 12, []int{12}},
		{"multi line", Lines, []orb.Geometry{orb.MultiLineString{{{0, 0}, {1, 0}}, {{2, 0}, {3, 0}}}, orb.LineString{{0, 0}, {0, 1}}}, 2, 36, []int{24, 36}},
		{"square", Polygons, []orb.Geometry{square(0, 0, 1)}, 1, 12, []int{12}},
		{"clockwise square", Polygons, []orb.Geometry{orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}}, 1, 12, []int{12}},
		{"multi polygon", Polygons, []orb.Geometry{orb.MultiPolygon{square(0, 0, 1), square(2, 0, 1)}}, 1, 24, []int{24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Decode(tt.typ, tt.geoms)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if g.NumFeatures() != tt.features {
				t.Errorf("NumFeatures() = %d, want %d", g.NumFeatures(), tt.features)
			}
			if len(g.Vertices) != tt.vertices {
				t.Errorf("len(Vertices) = %d, want %d", len(g.Vertices), tt.vertices)
			}
			if diff := cmp.Diff(tt.breakpoints, g.Breakpoints); diff != "" {
				t.Errorf("Breakpoints (-want +got):\n%s", diff)
			}
			if tt.typ == Lines && len(g.Normals) != len(g.Vertices) {
				t.Errorf("len(Normals) = %d, want %d", len(g.Normals), len(g.Vertices))
			}
		})
	}
}

func TestDecodeHoles(t *testing.T) {
	outer := orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}
	hole := orb.Ring{{1, 1}, {3, 1}, {3, 3}, {1, 3}, {1, 1}}
	g, err := Decode(Polygons, []orb.Geometry{orb.Polygon{outer, hole}})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	area := 0.0
	for off := 0; off+6 <= len(g.Vertices); off += 6 {
		a, b, c := g.vertex(off), g.vertex(off+2), g.vertex(off+4)
		if pointInTriangle(orb.Point{2, 2}, a, b, c) {
			t.Fatalf("triangle %d covers the hole center", off/6)
		}
		area += cross(a, b, c) / 2
	}
	if area != 12 {
		t.Errorf("triangulated area = %v, want 12", area)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		typ   GeometryType
		geoms []orb.Geometry
	}{
		{"line in points", Points, []orb.Geometry{orb.LineString{{0, 0}, {1, 1}}}},
		{"point in lines", Lines, []orb.Geometry{orb.Point{0, 0}}},
		{"nil in polygons", Polygons, []orb.Geometry{nil}},
		{"unknown type", GeometryType("raster"), []orb.Geometry{orb.Point{0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.typ, tt.geoms); types.CodeOf(err) != types.ErrInvalidData {
				t.Errorf("Decode() error = %v, want %s", err, types.ErrInvalidData)
			}
		})
	}
}

func TestNewChecksPropertyLengths(t *testing.T) {
	_, err := New(Config{
		Type:       Points,
		Geometry:   []orb.Geometry{orb.Point{0, 0}, orb.Point{1, 1}},
		Properties: map[string][]float32{"speed": {1}},
	})
	if types.CodeOf(err) != types.ErrInvalidData {
		t.Errorf("New() error = %v, want %s", err, types.ErrInvalidData)
	}
}

func TestBind(t *testing.T) {
	geoms := make([]orb.Geometry, 5)
	for i := range geoms {
		geoms[i] = orb.Point{float64(i), 0}
	}
	d, err := New(Config{
		Type:       Points,
		Scale:      1,
		Geometry:   geoms,
		Properties: map[string][]float32{"speed": {1, 2, 3, 4, 5}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := d.PropertyTexture("speed"); types.CodeOf(err) != types.ErrNotBound {
		t.Errorf("PropertyTexture() before Bind error = %v", err)
	}
	r := newRenderer(4)
	if err := d.Bind(r); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if w, h := d.TextureSize(); w != 4 || h != 2 {
		t.Errorf("TextureSize() = %dx%d, want 4x2", w, h)
	}
	want := []float32{
		0.125, 0.25, 0.375, 0.25, 0.625, 0.25, 0.875, 0.25,
		0.125, 0.75,
	}
	if diff := cmp.Diff(want, d.FeatureIDs()); diff != "" {
		t.Errorf("FeatureIDs (-want +got):\n%s", diff)
	}

	tex, err := d.PropertyTexture("speed")
	if err != nil {
		t.Fatalf("PropertyTexture() error = %v", err)
	}
	state, _ := r.gl.TextureState(tex)
	if diff := cmp.Diff([]float32{1, 2, 3, 4, 5, 0, 0, 0}, state.Spec.Floats); diff != "" {
		t.Errorf("property texels (-want +got):\n%s", diff)
	}
	for _, p := range types.ShadedStyles {
		tex, err := d.StyleTexture(p)
		if err != nil {
			t.Fatalf("StyleTexture(%s) error = %v", p, err)
		}
		state, _ := r.gl.TextureState(tex)
		if state.Spec.Format != gpu.RGBA8 || len(state.Spec.Pixels) != 32 {
			t.Errorf("style texture %s = %+v", p, state.Spec)
		}
	}
	if err := d.Bind(r); err == nil {
		t.Error("second Bind() succeeded")
	}
	if errs := r.gl.Errors(); len(errs) != 0 {
		t.Errorf("gl errors: %v", errs)
	}
}

func TestLineFeatureIDs(t *testing.T) {
	d, err := New(Config{
		Type:     Lines,
		Scale:    1,
		Geometry: []orb.Geometry{orb.LineString{{0, 0}, {1, 0}}, orb.LineString{{0, 1}, {1, 1}}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := d.Bind(newRenderer(2)); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	ids := d.FeatureIDs()
	if len(ids) != 24 {
		t.Fatalf("len(FeatureIDs) = %d, want 24", len(ids))
	}
	for v := 0; v < 12; v++ {
		want := float32(0.25)
		if v >= 6 {
			want = 0.75
		}
		if ids[2*v] != want || ids[2*v+1] != 0.5 {
			t.Errorf("vertex %d id = (%v, %v), want (%v, 0.5)", v, ids[2*v], ids[2*v+1], want)
		}
	}
}

func TestAddProperties(t *testing.T) {
	d, _ := New(Config{Type: Points, Geometry: []orb.Geometry{orb.Point{0, 0}}, Properties: map[string][]float32{"a": {1}}})
	r := newRenderer(16)
	if err := d.Bind(r); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	old, _ := d.PropertyTexture("a")
	if err := d.AddProperties(map[string][]float32{"a": {7}, "b": {2}}); err != nil {
		t.Fatalf("AddProperties() error = %v", err)
	}
	if state, _ := r.gl.TextureState(old); !state.Deleted {
		t.Error("replaced texture was not deleted")
	}
	if got := d.Feature(0); got["a"] != 7 || got["b"] != 2 {
		t.Errorf("Feature(0) = %v", got)
	}
	if diff := cmp.Diff([]string{"a", "b"}, d.PropertyNames()); diff != "" {
		t.Errorf("PropertyNames (-want +got):\n%s", diff)
	}
	if err := d.AddProperties(map[string][]float32{"c": {1, 2}}); types.CodeOf(err) != types.ErrInvalidData {
		t.Errorf("AddProperties() with a bad length error = %v", err)
	}
}

func TestFree(t *testing.T) {
	d, _ := New(Config{Type: Lines, Geometry: []orb.Geometry{orb.LineString{{0, 0}, {1, 0}}}, Properties: map[string][]float32{"a": {1}}})
	r := newRenderer(16)
	if err := d.Bind(r); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if r.gl.LiveBuffers() != 3 {
		t.Errorf("LiveBuffers() = %d, want 3", r.gl.LiveBuffers())
	}
	d.Free()
	d.Free()
	if !d.Freed() {
		t.Error("Freed() = false")
	}
	if n := len(r.gl.LiveTextures()); n != 0 {
		t.Errorf("%d textures left", n)
	}
	if r.gl.LiveBuffers() != 0 {
		t.Errorf("LiveBuffers() = %d after Free", r.gl.LiveBuffers())
	}
	if tex, err := d.StyleTexture(types.StyleColor); tex != gpu.FreedTexture || types.CodeOf(err) != types.ErrResourceFreed {
		t.Errorf("StyleTexture() after Free = %v, %v", tex, err)
	}
	if _, _, _, err := d.Buffers(); !types.IsFreed(err) {
		t.Errorf("Buffers() after Free error = %v", err)
	}
	if err := d.Bind(r); !types.IsFreed(err) {
		t.Errorf("Bind() after Free error = %v", err)
	}
	if _, err := d.GetFeaturesAtPosition(orb.Point{0, 0}, styles{}); !types.IsFreed(err) {
		t.Errorf("GetFeaturesAtPosition() after Free error = %v", err)
	}
	if errs := r.gl.Errors(); len(errs) != 0 {
		t.Errorf("gl errors: %v", errs)
	}
}

func hitIndices(t *testing.T, d *Dataframe, p orb.Point, s StyleSource) []int {
	t.Helper()
	hits, err := d.GetFeaturesAtPosition(p, s)
	if err != nil {
		t.Fatalf("GetFeaturesAtPosition(%v) error = %v", p, err)
	}
	var got []int
	for _, h := range hits {
		got = append(got, h.Index)
	}
	return got
}

func TestPointHits(t *testing.T) {
	// One pixel is 0.01 world units: a 20 px point has a 0.1 radius.
	d, _ := New(Config{
		Type:       Points,
		Center:     orb.Point{10, 10},
		Scale:      1,
		Geometry:   []orb.Geometry{orb.Point{0, 0}, orb.Point{0.15, 0}, orb.Point{5, 5}},
		Properties: map[string][]float32{"visible": {1, 1, 0}},
	})
	if _, err := d.GetFeaturesAtPosition(orb.Point{10, 10}, styles{}); types.CodeOf(err) != types.ErrNotBound {
		t.Errorf("GetFeaturesAtPosition() before Bind error = %v", err)
	}
	if err := d.Bind(newRenderer(16)); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	s := styles{types.StyleWidth: 20}
	tests := []struct {
		name string
		p    orb.Point
		want []int
	}{
		{"center", orb.Point{10, 10}, []int{0}},
		{"edge", orb.Point{10.1, 10}, []int{0, 1}},
		{"between", orb.Point{10.075, 10}, []int{0, 1}},
		{"outside", orb.Point{10, 10.2}, nil},
		{"filtered out", orb.Point{15, 15}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, hitIndices(t, d, tt.p, s)); diff != "" {
				t.Errorf("hits (-want +got):\n%s", diff)
			}
		})
	}

	stroked := styles{types.StyleWidth: 20, types.StyleStrokeWidth: 20}
	if diff := cmp.Diff([]int{0, 1}, hitIndices(t, d, orb.Point{10.075, 10.15}, stroked)); diff != "" {
		t.Errorf("stroke widens the hit area (-want +got):\n%s", diff)
	}
	huge := styles{types.StyleWidth: 1000}
	if got := hitIndices(t, d, orb.Point{10, 10.7}, huge); got != nil {
		t.Errorf("diameter above %d px is not capped: %v", MaxPointDiameter, got)
	}
}

func TestLineHits(t *testing.T) {
	d, _ := New(Config{
		Type:     Lines,
		Scale:    1,
		Geometry: []orb.Geometry{orb.LineString{{0, 0}, {1, 0}}, orb.LineString{{0, 1}, {1, 1}, {1, 2}}},
	})
	if err := d.Bind(newRenderer(16)); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	s := styles{types.StyleWidth: 10}
	tests := []struct {
		name string
		p    orb.Point
		want []int
	}{
		{"on first line", orb.Point{0.5, 0.04}, []int{0}},
		{"beside first line", orb.Point{0.5, 0.06}, nil},
		{"second segment", orb.Point{0.97, 1.5}, []int{1}},
		{"past the end", orb.Point{1.2, 0}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, hitIndices(t, d, tt.p, s)); diff != "" {
				t.Errorf("hits (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPolygonHits(t *testing.T) {
	meta := types.NewMetadata(
		types.Column{Name: "cartodb_id", Type: types.TypeNumber},
		types.Column{Name: "kind", Type: types.TypeCategory, CategoryNames: []string{"park", "lake"}},
	)
	d, _ := New(Config{
		Type:     Polygons,
		Scale:    2,
		Geometry: []orb.Geometry{square(0, 0, 1), square(2, 0, 1)},
		Properties: map[string][]float32{
			"cartodb_id": {101, 102},
			"kind":       {1, 0},
		},
		Metadata: meta,
	})
	if err := d.Bind(newRenderer(16)); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	hits, err := d.GetFeaturesAtPosition(orb.Point{5, 1}, styles{})
	if err != nil {
		t.Fatalf("GetFeaturesAtPosition() error = %v", err)
	}
	want := []Feature{{
		Index:      1,
		ID:         102.0,
		Properties: map[string]any{"cartodb_id": 102.0, "kind": "park"},
	}}
	if diff := cmp.Diff(want, hits); diff != "" {
		t.Errorf("hits (-want +got):\n%s", diff)
	}
	if got := hitIndices(t, d, orb.Point{3, 1}, styles{}); got != nil {
		t.Errorf("gap between polygons hit %v", got)
	}
}
