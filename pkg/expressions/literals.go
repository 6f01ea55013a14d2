package expressions

import (
	"math"
	"strings"
	"time"

	"golang.org/x/image/colornames"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/types"
)

// Number is a numeric literal.
type Number struct {
	composite
	value float64
}

// NewNumber creates a numeric literal. The value must be finite.
func NewNumber(v float64) (*Number, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, types.Errorf(types.ErrInvalidParameter, "invalid number %v", v).WithExpr("number")
	}
	return &Number{value: v}, nil
}

func (n *Number) Name() string     { return "number" }
func (n *Number) Type() types.Type { return types.TypeNumber }

// Value returns the literal value.
func (n *Number) Value() float64 { return n.value }

func (n *Number) Eval(types.Feature) (any, error) { return n.value, nil }

func (n *Number) Compile(*types.Metadata) error { return nil }

func (n *Number) EmitShaderSource(*UniformIDs, PropertyResolver) (ShaderSource, error) {
	return ShaderSource{Inline: glslFloat(n.value)}, nil
}

// Category is a category literal. It evaluates to the category ID assigned
// by the metadata it was compiled against; a name absent from the metadata
// gets ID -1, which matches no feature.
type Category struct {
	composite
	name     string
	id       int
	compiled bool
}

// NewCategory creates a category literal.
func NewCategory(name string) *Category {
	return &Category{name: name}
}

func (c *Category) Name() string     { return "category" }
func (c *Category) Type() types.Type { return types.TypeCategory }

// Value returns the category name.
func (c *Category) Value() string { return c.name }

func (c *Category) Eval(types.Feature) (any, error) {
	if !c.compiled {
		return nil, errNotCompiled(c.Name())
	}
	return float64(c.id), nil
}

func (c *Category) Compile(meta *types.Metadata) error {
	id, ok := meta.CategoryID(c.name)
	if !ok {
		id = -1
	}
	c.id, c.compiled = id, true
	return nil
}

func (c *Category) EmitShaderSource(*UniformIDs, PropertyResolver) (ShaderSource, error) {
	if !c.compiled {
		return ShaderSource{}, errNotCompiled(c.Name())
	}
	return ShaderSource{Inline: glslFloat(float64(c.id))}, nil
}

// constColor is the shared body of color literals.
type constColor struct {
	composite
	color types.Color
}

func (c *constColor) Type() types.Type                { return types.TypeColor }
func (c *constColor) Eval(types.Feature) (any, error) { return c.color, nil }
func (c *constColor) Compile(*types.Metadata) error   { return nil }

func (c *constColor) EmitShaderSource(*UniformIDs, PropertyResolver) (ShaderSource, error) {
	return ShaderSource{Inline: glslColor(c.color)}, nil
}

// Hex is a hexadecimal color literal.
type Hex struct {
	constColor
	hex string
}

// NewHex parses #RGB, #RGBA, #RRGGBB or #RRGGBBAA.
func NewHex(hex string) (*Hex, error) {
	c, err := types.ParseHexColor(hex)
	if err != nil {
		return nil, err.(*types.Error).WithExpr("hex")
	}
	return &Hex{constColor: constColor{color: c}, hex: hex}, nil
}

func (h *Hex) Name() string { return "hex" }

// NamedColor is a CSS color name literal.
type NamedColor struct {
	constColor
	name string
}

// NewNamedColor resolves a CSS color name, case-insensitively.
func NewNamedColor(name string) (*NamedColor, error) {
	rgba, ok := colornames.Map[strings.ToLower(name)]
	if !ok {
		return nil, types.Errorf(types.ErrUnknownColorName, "invalid color name %q", name).WithExpr("namedColor")
	}
	c := types.Color{R: float64(rgba.R), G: float64(rgba.G), B: float64(rgba.B), A: float64(rgba.A) / 255}
	return &NamedColor{constColor: constColor{color: c}, name: name}, nil
}

func (n *NamedColor) Name() string { return "namedColor" }

// IsColorName reports whether name is a known CSS color name.
func IsColorName(name string) bool {
	_, ok := colornames.Map[strings.ToLower(name)]
	return ok
}

// Time is a date literal. In GLSL it is its Unix time in seconds.
type Time struct {
	composite
	t time.Time
}

// NewTime creates a date literal.
func NewTime(t time.Time) *Time {
	return &Time{t: t}
}

// ParseTime creates a date literal from an RFC 3339 string.
func ParseTime(s string) (*Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidParameter, "invalid date %q", s).WithExpr("time").WithCause(err)
	}
	return NewTime(t), nil
}

func (t *Time) Name() string                    { return "time" }
func (t *Time) Type() types.Type                { return types.TypeDate }
func (t *Time) Eval(types.Feature) (any, error) { return t.t, nil }
func (t *Time) Compile(*types.Metadata) error   { return nil }

func (t *Time) EmitShaderSource(*UniformIDs, PropertyResolver) (ShaderSource, error) {
	return ShaderSource{Inline: glslFloat(unixSeconds(t.t))}, nil
}

// Now is the current time in seconds since the Unix epoch, read from a clock
// on every evaluation and uploaded as a float uniform on every draw. The GPU
// copy has float32 resolution.
type Now struct {
	composite
	clock    Clock
	uniforms uniformBinding
}

// NewNow creates a now() node reading clock.
func NewNow(clock Clock) *Now {
	return &Now{clock: clock}
}

func (n *Now) Name() string     { return "now" }
func (n *Now) Type() types.Type { return types.TypeNumber }

func (n *Now) Eval(types.Feature) (any, error) {
	return unixSeconds(n.clock.now()), nil
}

func (n *Now) Compile(*types.Metadata) error { return nil }

func (n *Now) EmitShaderSource(ids *UniformIDs, _ PropertyResolver) (ShaderSource, error) {
	uid, declared := n.uniforms.id(ids)
	src := ShaderSource{Inline: "now" + itoa(uid)}
	if !declared {
		src.Preface = "uniform float now" + itoa(uid) + ";\n"
	}
	return src, nil
}

func (n *Now) BindUniforms(gl gpu.Context, program gpu.Program) error {
	n.uniforms.bind(gl, program, "now")
	return nil
}

func (n *Now) SetUniforms(gl gpu.Context, ds *DrawState) error {
	gl.Uniform1f(n.uniforms.loc(ds.Program, 0), float32(unixSeconds(n.clock.now())))
	return nil
}
