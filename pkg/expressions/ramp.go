package expressions

import (
	"fmt"
	"math"
	"strings"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/types"
)

// RampTextureWidth is the width of the ramp gradient texture.
const RampTextureWidth = 256

// Ramp maps its input onto a palette. With a color palette the result is a
// color read from a gradient texture; with a list of numbers it is a number
// interpolated piecewise linearly between them.
//
// The input range is [0, 1], or [0, numCategories-1] for classified category
// inputs.
type Ramp struct {
	composite
	input   Node
	palette Node
	numbers *CustomNumberPalette

	// Derived by Compile.
	compiled bool
	minKey   float64
	maxKey   float64
	gradient []byte

	// uniforms binds keyMin, keyWidth and texRamp, in that order.
	uniforms uniformBinding
	texture  gpu.Texture
	texDirty bool // gradient changed since the last upload
}

// NewRamp creates ramp(input, palette).
func NewRamp(input, palette any) (*Ramp, error) {
	in, err := castArg("ramp", "input", 0, input)
	if err != nil {
		return nil, err
	}
	if err := checkLooseType("ramp", "input", 0, in, types.TypeNumber, types.TypeCategory); err != nil {
		return nil, err
	}
	pal, err := castArg("ramp", "palette", 1, palette)
	if err != nil {
		return nil, err
	}
	if err := checkLooseType("ramp", "palette", 1, pal, types.TypePalette, types.TypeCustomPalette); err != nil {
		return nil, err
	}
	r := &Ramp{
		composite:   composite{children: []Child{{"input", in}, {"palette", pal}}},
		input:       in,
		palette:     pal,
	}
	r.numbers, _ = pal.(*CustomNumberPalette)
	return r, nil
}

func (r *Ramp) Name() string { return "ramp" }

func (r *Ramp) Type() types.Type {
	if r.numbers != nil {
		return types.TypeNumber
	}
	return types.TypeColor
}

// keyWidth is the width of the input range; an empty range counts as 1.
func (r *Ramp) keyWidth() float64 {
	if w := r.maxKey - r.minKey; w != 0 {
		return w
	}
	return 1
}

func (r *Ramp) Compile(meta *types.Metadata) error {
	r.compiled = false
	if err := r.compileChildren(meta); err != nil {
		return err
	}
	if err := checkType("ramp", "input", 0, r.input, types.TypeNumber, types.TypeCategory); err != nil {
		return err
	}
	minKey, maxKey := 0.0, 1.0
	if cl, ok := r.input.(Classifier); ok && r.input.Type() == types.TypeCategory {
		if n, ok := cl.NumCategories(); ok {
			maxKey = float64(n - 1)
		}
	}
	var gradient []byte
	if r.numbers == nil {
		colors, err := r.colors()
		if err != nil {
			return err
		}
		gradient = buildGradient(colors)
	}
	r.minKey, r.maxKey, r.gradient, r.compiled = minKey, maxKey, gradient, true
	r.texDirty = true
	return nil
}

// colors selects the colors the gradient interpolates.
func (r *Ramp) colors() ([]types.Color, error) {
	var colors []types.Color
	switch p := r.palette.(type) {
	case *CustomPalette:
		c, err := p.Colors()
		if err != nil {
			return nil, err
		}
		colors = c
	case *Palette:
		pal := p.Palette()
		n, classified := 0, false
		others := false
		if cl, ok := r.input.(Classifier); ok {
			n, classified = cl.NumCategories()
			others = cl.OthersBucket()
		}
		colors = pal.LongestSubPalette()
		if classified && n > 0 {
			key := n - 1
			if pal.IsQualitative() && !others {
				// The trailing others color is dropped below.
				key = n
			}
			if sub, ok := pal.SubPalette(key); ok {
				colors = sub
			}
		}
		if pal.IsQualitative() && !others && len(colors) > 0 {
			colors = colors[:len(colors)-1]
		}
	default:
		return nil, typeMismatch(types.ErrInvalidParameterType, "ramp", "palette", 1,
			[]types.Type{types.TypePalette, types.TypeCustomPalette}, r.palette.Type())
	}
	if len(colors) == 0 {
		return nil, types.NewError(types.ErrInvalidParameter, "palette has no colors").WithExpr("ramp")
	}
	return colors, nil
}

// buildGradient interpolates colors into a RampTextureWidth wide RGBA row.
// Texel i sits at position i/(width-1) along the palette, so the first and
// last texels hold the first and last colors exactly.
func buildGradient(colors []types.Color) []byte {
	pixels := make([]byte, 4*RampTextureWidth)
	last := float64(len(colors) - 1)
	for i := 0; i < RampTextureWidth; i++ {
		pos := float64(i) / float64(RampTextureWidth-1) * last
		lo, hi := math.Floor(pos), math.Ceil(pos)
		c := colors[int(lo)].Lerp(colors[int(hi)], pos-lo)
		b := c.Bytes()
		copy(pixels[4*i:], b[:])
	}
	return pixels
}

// sampleLinear reads a row of RGBA texels at normalized coordinate u with
// clamp-to-edge linear filtering: texel i is centered at (i+0.5)/width.
func sampleLinear(pixels []byte, u float64) types.Color {
	width := len(pixels) / 4
	x := u*float64(width) - 0.5
	if math.IsNaN(x) {
		x = 0
	}
	x = clamp(x, 0, float64(width-1))
	i0 := int(math.Floor(x))
	i1 := i0 + 1
	if i1 > width-1 {
		i1 = width - 1
	}
	texel := func(i int) types.Color {
		return types.ColorFromBytes([4]byte{pixels[4*i], pixels[4*i+1], pixels[4*i+2], pixels[4*i+3]})
	}
	return texel(i0).Lerp(texel(i1), x-float64(i0))
}

func (r *Ramp) Eval(f types.Feature) (any, error) {
	if !r.compiled {
		return nil, errNotCompiled(r.Name())
	}
	x, err := evalFloat(r.input, f)
	if err != nil {
		return nil, err
	}
	t := (x - r.minKey) / r.keyWidth()
	if r.numbers == nil {
		return sampleLinear(r.gradient, t), nil
	}
	v, err := r.numbers.Eval(f)
	if err != nil {
		return nil, err
	}
	values := v.([]float64)
	t = clamp(t, 0, 1)
	k := float64(len(values) - 1)
	out := values[0]
	for i := 0; i+1 < len(values); i++ {
		out += (values[i+1] - values[i]) * clamp(t*k-float64(i), 0, 1)
	}
	return out, nil
}

func (r *Ramp) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	if !r.compiled {
		return ShaderSource{}, errNotCompiled(r.Name())
	}
	input, err := r.input.EmitShaderSource(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	uid, declared := r.uniforms.id(ids)
	id := itoa(uid)
	var preface strings.Builder
	preface.WriteString(input.Preface)
	t := fmt.Sprintf("(%s-keyMin%s)/keyWidth%s", input.Inline, id, id)

	if r.numbers == nil {
		if !declared {
			fmt.Fprintf(&preface, "uniform sampler2D texRamp%s;\nuniform float keyMin%s;\nuniform float keyWidth%s;\n", id, id, id)
		}
		return ShaderSource{
			Preface: preface.String(),
			Inline:  fmt.Sprintf("texture2D(texRamp%s, vec2(%s, 0.5)).rgba", id, t),
		}, nil
	}

	if !declared {
		fmt.Fprintf(&preface, "uniform float keyMin%s;\nuniform float keyWidth%s;\n", id, id)
	}
	values := make([]string, len(r.numbers.values))
	for i, v := range r.numbers.values {
		src, err := v.EmitShaderSource(ids, prop)
		if err != nil {
			return ShaderSource{}, err
		}
		preface.WriteString(src.Preface)
		values[i] = src.Inline
	}
	k := glslFloat(float64(len(values) - 1))
	var inline strings.Builder
	inline.WriteString("(" + values[0])
	for i := 0; i+1 < len(values); i++ {
		fmt.Fprintf(&inline, " + (%s - %s)*clamp(clamp(%s, 0.0, 1.0)*%s - %s, 0.0, 1.0)",
			values[i+1], values[i], t, k, glslFloat(float64(i)))
	}
	inline.WriteString(")")
	return ShaderSource{Preface: preface.String(), Inline: inline.String()}, nil
}

func (r *Ramp) BindUniforms(gl gpu.Context, program gpu.Program) error {
	if r.texture == gpu.FreedTexture {
		return errFreed(r.Name())
	}
	if err := r.composite.BindUniforms(gl, program); err != nil {
		return err
	}
	if r.numbers != nil {
		r.uniforms.bind(gl, program, "keyMin", "keyWidth")
		return nil
	}
	r.uniforms.bind(gl, program, "keyMin", "keyWidth", "texRamp")
	if r.texture == 0 {
		r.texture = gl.CreateTexture()
		r.texDirty = true
	}
	return nil
}

func (r *Ramp) SetUniforms(gl gpu.Context, ds *DrawState) error {
	if r.texture == gpu.FreedTexture {
		return errFreed(r.Name())
	}
	if err := r.composite.SetUniforms(gl, ds); err != nil {
		return err
	}
	if r.numbers == nil {
		if r.texDirty && r.texture != 0 {
			gl.TexImage2D(r.texture, gpu.TextureSpec{
				Width:  RampTextureWidth,
				Height: 1,
				Format: gpu.RGBA8,
				Filter: gpu.Linear,
				Pixels: r.gradient,
			})
			r.texDirty = false
		}
		unit := ds.TakeTexUnit()
		gl.ActiveTexture(unit)
		gl.BindTexture(r.texture)
		gl.Uniform1i(r.uniforms.loc(ds.Program, 2), unit)
	}
	gl.Uniform1f(r.uniforms.loc(ds.Program, 0), float32(r.minKey))
	gl.Uniform1f(r.uniforms.loc(ds.Program, 1), float32(r.keyWidth()))
	return nil
}

func (r *Ramp) Free(gl gpu.Context) {
	r.composite.Free(gl)
	freeTexture(gl, &r.texture)
}
