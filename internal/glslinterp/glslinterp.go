// Package glslinterp evaluates the GLSL subset emitted by the expressions
// package on the host.
//
// GLSL value expressions share their syntax with HCL expressions (numbers,
// arithmetic, comparisons, && and ||, the ?: conditional, function calls and
// .field access), so inline code is parsed with hclsyntax and evaluated with
// a cty function table implementing the GLSL built-ins. Uniform values and
// textures come from a headless context, and the buckets helper functions of
// the preface are parsed and evaluated the same way.
package glslinterp

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/gpu/headless"
)

var (
	uniformDecl = regexp.MustCompile(`uniform\s+(float|sampler2D)\s+(\w+)\s*;`)
	bucketsHead = regexp.MustCompile(`^float (\w+)\(float x\)\{$`)
	bucketsCase = regexp.MustCompile(`^\s*(?:\} else )?if \(x(<|==)\((.*)\)\)\{$`)
	returnStmt  = regexp.MustCompile(`^\s*return (.*);$`)
)

// Interpreter evaluates inline GLSL against the state of one program. It is
// not safe for concurrent use.
type Interpreter struct {
	gl      *headless.Context
	program *headless.Program
	ctx     *hcl.EvalContext
}

// New prepares an interpreter for program, declaring the uniforms and
// helper functions found in preface.
func New(gl *headless.Context, program gpu.Program, preface string) (*Interpreter, error) {
	prog, ok := gl.ProgramState(program)
	if !ok {
		return nil, fmt.Errorf("unknown program %d", program)
	}
	in := &Interpreter{gl: gl, program: prog}
	in.ctx = &hcl.EvalContext{
		Variables: make(map[string]cty.Value),
		Functions: builtins(in),
	}
	for _, m := range uniformDecl.FindAllStringSubmatch(preface, -1) {
		if m[1] == "float" {
			in.ctx.Variables[m[2]] = cty.NumberFloatVal(float64(prog.Floats[m[2]]))
		} else {
			in.ctx.Variables[m[2]] = cty.StringVal(m[2])
		}
	}
	if err := in.parseBuckets(preface); err != nil {
		return nil, err
	}
	return in, nil
}

type bucketCase struct {
	equal bool
	bound hclsyntax.Expression
	value float64
}

// parseBuckets registers every "float bucketsN(float x)" helper.
func (in *Interpreter) parseBuckets(preface string) error {
	lines := strings.Split(preface, "\n")
	for i := 0; i < len(lines); i++ {
		head := bucketsHead.FindStringSubmatch(lines[i])
		if head == nil {
			continue
		}
		var cases []bucketCase
		fallback := math.NaN()
		for i++; i < len(lines) && lines[i] != "}"; i++ {
			if m := bucketsCase.FindStringSubmatch(lines[i]); m != nil {
				bound, err := parse(m[2])
				if err != nil {
					return fmt.Errorf("%s: %w", head[1], err)
				}
				if i+1 >= len(lines) {
					return fmt.Errorf("%s: truncated body", head[1])
				}
				i++
				ret := returnStmt.FindStringSubmatch(lines[i])
				if ret == nil {
					return fmt.Errorf("%s: expected return after condition, got %q", head[1], lines[i])
				}
				v, err := strconv.ParseFloat(ret[1], 64)
				if err != nil {
					return fmt.Errorf("%s: %w", head[1], err)
				}
				cases = append(cases, bucketCase{equal: m[1] == "==", bound: bound, value: v})
				continue
			}
			if ret := returnStmt.FindStringSubmatch(lines[i]); ret != nil {
				v, err := strconv.ParseFloat(ret[1], 64)
				if err != nil {
					return fmt.Errorf("%s: %w", head[1], err)
				}
				fallback = v
			}
		}
		if math.IsNaN(fallback) {
			return fmt.Errorf("%s: missing fallback return", head[1])
		}
		in.ctx.Functions[head[1]] = in.bucketsFunc(cases, fallback)
	}
	return nil
}

func (in *Interpreter) bucketsFunc(cases []bucketCase, fallback float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "x", Type: cty.Number}},
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			x := toFloat(args[0])
			for _, c := range cases {
				v, diags := c.bound.Value(in.ctx)
				if diags.HasErrors() {
					return cty.NilVal, diags
				}
				b := toFloat(v)
				if (c.equal && x == b) || (!c.equal && x < b) {
					return cty.NumberFloatVal(c.value), nil
				}
			}
			return cty.NumberFloatVal(fallback), nil
		},
	})
}

func parse(src string) (hclsyntax.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "inline.glsl", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diags
	}
	return expr, nil
}

// Eval evaluates inline for the feature at featureID. Floats come back as
// cty numbers, vec4 values as 4-tuples.
func (in *Interpreter) Eval(inline string, featureID [2]float64) (cty.Value, error) {
	expr, err := parse(inline)
	if err != nil {
		return cty.NilVal, err
	}
	in.ctx.Variables["featureID"] = cty.TupleVal([]cty.Value{cty.NumberFloatVal(featureID[0]), cty.NumberFloatVal(featureID[1])})
	v, diags := expr.Value(in.ctx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return v, nil
}

// Float evaluates inline as a float.
func (in *Interpreter) Float(inline string, featureID [2]float64) (float64, error) {
	v, err := in.Eval(inline, featureID)
	if err != nil {
		return 0, err
	}
	if v.Type() != cty.Number {
		return 0, fmt.Errorf("expected a float, got %s", v.Type().FriendlyName())
	}
	return toFloat(v), nil
}

// Vec4 evaluates inline as a vec4.
func (in *Interpreter) Vec4(inline string, featureID [2]float64) ([4]float64, error) {
	var out [4]float64
	v, err := in.Eval(inline, featureID)
	if err != nil {
		return out, err
	}
	if !v.Type().IsTupleType() || v.LengthInt() != 4 {
		return out, fmt.Errorf("expected a vec4, got %s", v.Type().FriendlyName())
	}
	for i, e := range v.AsValueSlice() {
		out[i] = toFloat(e)
	}
	return out, nil
}

func toFloat(v cty.Value) float64 {
	f, _ := v.AsBigFloat().Float64()
	return f
}

func number(f float64) (cty.Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return cty.NilVal, fmt.Errorf("non-finite result %v", f)
	}
	return cty.NumberFloatVal(f), nil
}

// texel returns texel (x, y) of tex as RGBA in [0, 1].
func texel(tex *headless.Texture, x, y int) [4]float64 {
	spec := tex.Spec
	i := y*spec.Width + x
	if spec.Format == gpu.AlphaFloat {
		return [4]float64{0, 0, 0, float64(spec.Floats[i])}
	}
	p := spec.Pixels[4*i : 4*i+4]
	return [4]float64{float64(p[0]) / 255, float64(p[1]) / 255, float64(p[2]) / 255, float64(p[3]) / 255}
}

// sample reads tex at normalized (u, v) with clamp-to-edge wrapping.
func sample(tex *headless.Texture, u, v float64) [4]float64 {
	w, h := tex.Spec.Width, tex.Spec.Height
	if tex.Spec.Filter == gpu.Nearest {
		x := clampInt(int(math.Floor(u*float64(w))), 0, w-1)
		y := clampInt(int(math.Floor(v*float64(h))), 0, h-1)
		return texel(tex, x, y)
	}
	fx := math.Min(math.Max(u*float64(w)-0.5, 0), float64(w-1))
	fy := math.Min(math.Max(v*float64(h)-0.5, 0), float64(h-1))
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	x1, y1 := clampInt(x0+1, 0, w-1), clampInt(y0+1, 0, h-1)
	mx, my := fx-float64(x0), fy-float64(y0)
	var out [4]float64
	t00, t10 := texel(tex, x0, y0), texel(tex, x1, y0)
	t01, t11 := texel(tex, x0, y1), texel(tex, x1, y1)
	for c := 0; c < 4; c++ {
		top := t00[c]*(1-mx) + t10[c]*mx
		bottom := t01[c]*(1-mx) + t11[c]*mx
		out[c] = top*(1-my) + bottom*my
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lookupTexture resolves a sampler uniform through its texture unit.
func (in *Interpreter) lookupTexture(sampler string) (*headless.Texture, error) {
	unit, ok := in.program.Ints[sampler]
	if !ok {
		return nil, fmt.Errorf("sampler %s has no texture unit", sampler)
	}
	t, ok := in.gl.BoundTexture(unit)
	if !ok {
		return nil, fmt.Errorf("nothing bound to unit %d for %s", unit, sampler)
	}
	tex, ok := in.gl.TextureState(t)
	if !ok || tex.Deleted {
		return nil, fmt.Errorf("texture %d of %s is not live", t, sampler)
	}
	return tex, nil
}
