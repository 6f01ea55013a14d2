package expressions

import (
	"fmt"
	"math"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/types"
)

// TopTextureWidth is the width of the top() lookup texture, and so the
// number of category IDs top() can address.
const TopTextureWidth = 1024

// Top ranks a category property: the n most significant categories (in
// metadata order) evaluate to 1..n, every other category to 0.
type Top struct {
	composite
	property *Property
	buckets  Node

	// Derived by Compile.
	ranks    map[int]int // category ID to significance rank
	compiled bool

	uniforms   uniformBinding
	texture    gpu.Texture
	texBuckets int // bucket count the texture was built for, -1 if none
}

// NewTop creates top(property, n).
func NewTop(property any, n any) (*Top, error) {
	p, ok := property.(*Property)
	if !ok {
		return nil, types.Errorf(types.ErrInvalidParameter, "invalid first parameter 'property'\n\texpected a property reference, got %T", property).WithExpr("top")
	}
	bn, err := castArg("top", "buckets", 1, n)
	if err != nil {
		return nil, err
	}
	if err := checkLooseType("top", "buckets", 1, bn, types.TypeNumber); err != nil {
		return nil, err
	}
	return &Top{
		composite:  composite{children: []Child{{"property", p}, {"buckets", bn}}},
		property:   p,
		buckets:    bn,
		texBuckets: -1,
	}, nil
}

func (t *Top) Name() string     { return "top" }
func (t *Top) Type() types.Type { return types.TypeCategory }

func (t *Top) numBuckets() (int, error) {
	n, err := evalFloat(t.buckets, nil)
	if err != nil {
		return 0, err
	}
	return int(math.Round(n)), nil
}

// rankedBuckets is the number of categories that get a rank of their own:
// numBuckets clamped to the column size and to what an alpha byte holds.
func (t *Top) rankedBuckets() (int, error) {
	n, err := t.numBuckets()
	if err != nil {
		return 0, err
	}
	if total := len(t.property.column.CategoryNames); n > total {
		n = total
	}
	if n > 255 {
		n = 255
	}
	return n, nil
}

// NumCategories is round(n)+1.
func (t *Top) NumCategories() (int, bool) {
	if !t.compiled {
		return 0, false
	}
	n, err := t.numBuckets()
	if err != nil {
		return 0, false
	}
	return n + 1, true
}

// OthersBucket is always true: bucket 0 collects the other categories.
func (t *Top) OthersBucket() bool { return true }

func (t *Top) Compile(meta *types.Metadata) error {
	t.compiled = false
	if err := t.compileChildren(meta); err != nil {
		return err
	}
	if err := checkType("top", "property", 0, t.property, types.TypeCategory); err != nil {
		return err
	}
	if err := checkType("top", "buckets", 1, t.buckets, types.TypeNumber); err != nil {
		return err
	}
	col := t.property.column
	if len(col.CategoryNames) > TopTextureWidth {
		return types.Errorf(types.ErrTooManyCategories, "property %q has %d categories, at most %d are supported",
			col.Name, len(col.CategoryNames), TopTextureWidth).WithExpr(t.Name())
	}
	ranks := make(map[int]int, len(col.CategoryNames))
	for rank, name := range col.CategoryNames {
		id, ok := meta.CategoryID(name)
		if !ok {
			return types.Errorf(types.ErrUnknownCategory, "category %q of property %q has no ID", name, col.Name).WithExpr(t.Name())
		}
		if id >= TopTextureWidth {
			return types.Errorf(types.ErrTooManyCategories, "category %q has ID %d, at most %d IDs are supported",
				name, id, TopTextureWidth).WithExpr(t.Name())
		}
		ranks[id] = rank
	}
	t.ranks, t.compiled = ranks, true
	t.texBuckets = -1
	return nil
}

func (t *Top) Eval(f types.Feature) (any, error) {
	if !t.compiled {
		return nil, errNotCompiled(t.Name())
	}
	p, err := evalFloat(t.property, f)
	if err != nil {
		return nil, err
	}
	n, err := t.rankedBuckets()
	if err != nil {
		return nil, err
	}
	rank, ok := t.ranks[int(p)]
	if !ok || float64(int(p)) != p || rank >= n {
		return 0.0, nil
	}
	return float64(rank + 1), nil
}

func (t *Top) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	if !t.compiled {
		return ShaderSource{}, errNotCompiled(t.Name())
	}
	p, err := t.property.EmitShaderSource(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	uid, declared := t.uniforms.id(ids)
	name := "topMap" + itoa(uid)
	preface := p.Preface
	if !declared {
		preface += fmt.Sprintf("uniform sampler2D %s;\n", name)
	}
	return ShaderSource{
		Preface: preface,
		Inline: fmt.Sprintf("floor(255.0*texture2D(%s, vec2((%s+0.5)/%s, 0.5)).a+0.5)",
			name, p.Inline, glslFloat(TopTextureWidth)),
	}, nil
}

func (t *Top) BindUniforms(gl gpu.Context, program gpu.Program) error {
	if t.texture == gpu.FreedTexture {
		return errFreed(t.Name())
	}
	if err := t.composite.BindUniforms(gl, program); err != nil {
		return err
	}
	if t.texture == 0 {
		t.texture = gl.CreateTexture()
	}
	t.uniforms.bind(gl, program, "topMap")
	return nil
}

// lookupPixels builds the RGBA lookup row for n buckets.
func (t *Top) lookupPixels(n int) []byte {
	pixels := make([]byte, 4*TopTextureWidth)
	for id, rank := range t.ranks {
		if rank < n {
			pixels[4*id+3] = byte(rank + 1)
		}
	}
	return pixels
}

func (t *Top) SetUniforms(gl gpu.Context, ds *DrawState) error {
	if t.texture == gpu.FreedTexture {
		return errFreed(t.Name())
	}
	if err := t.composite.SetUniforms(gl, ds); err != nil {
		return err
	}
	n, err := t.rankedBuckets()
	if err != nil {
		return err
	}
	if n != t.texBuckets {
		gl.TexImage2D(t.texture, gpu.TextureSpec{
			Width:  TopTextureWidth,
			Height: 1,
			Format: gpu.RGBA8,
			Filter: gpu.Nearest,
			Pixels: t.lookupPixels(n),
		})
		t.texBuckets = n
	}
	unit := ds.TakeTexUnit()
	gl.ActiveTexture(unit)
	gl.BindTexture(t.texture)
	gl.Uniform1i(t.uniforms.loc(ds.Program, 0), unit)
	return nil
}

func (t *Top) Free(gl gpu.Context) {
	t.composite.Free(gl)
	freeTexture(gl, &t.texture)
}
