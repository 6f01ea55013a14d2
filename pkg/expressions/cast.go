package expressions

import (
	"strings"
	"time"

	"github.com/sandrolain/goviz/pkg/palettes"
	"github.com/sandrolain/goviz/pkg/types"
)

// Cast converts a Go value into a node:
//
//   - a Node is returned as is
//   - numbers become Number
//   - strings starting with '#' become Hex, other strings Category
//   - time.Time becomes Time
//   - *palettes.Palette becomes Palette
//   - slices of colors become CustomPalette, slices of numbers
//     CustomNumberPalette
func Cast(v any) (Node, error) {
	switch x := v.(type) {
	case Node:
		return x, nil
	case float64:
		return NewNumber(x)
	case float32:
		return NewNumber(float64(x))
	case int:
		return NewNumber(float64(x))
	case int64:
		return NewNumber(float64(x))
	case string:
		if strings.HasPrefix(x, "#") {
			return NewHex(x)
		}
		return NewCategory(x), nil
	case time.Time:
		return NewTime(x), nil
	case *palettes.Palette:
		return NewPalette(x)
	case []Node:
		return castList(x)
	case []any:
		nodes := make([]Node, len(x))
		for i, e := range x {
			n, err := Cast(e)
			if err != nil {
				return nil, err
			}
			nodes[i] = n
		}
		return castList(nodes)
	case []float64:
		nodes := make([]Node, len(x))
		for i, e := range x {
			n, err := NewNumber(e)
			if err != nil {
				return nil, err
			}
			nodes[i] = n
		}
		return castList(nodes)
	case []string:
		nodes := make([]Node, len(x))
		for i, e := range x {
			n, err := Cast(e)
			if err != nil {
				return nil, err
			}
			nodes[i] = n
		}
		return castList(nodes)
	}
	return nil, types.Errorf(types.ErrInvalidCast, "cannot use value of type %T as an expression", v)
}

func castList(nodes []Node) (Node, error) {
	if len(nodes) == 0 {
		return nil, types.NewError(types.ErrInvalidCast, "cannot use an empty list as an expression")
	}
	switch nodes[0].Type() {
	case types.TypeColor:
		return NewCustomPalette(nodes...)
	case types.TypeNumber:
		return NewCustomNumberPalette(nodes...)
	}
	return nil, types.Errorf(types.ErrInvalidCast, "cannot use a list of %s as an expression", nodes[0].Type())
}

// castAll casts each element of vs.
func castAll(fn, param string, first int, vs []any) ([]Node, error) {
	nodes := make([]Node, len(vs))
	for i, v := range vs {
		n, err := castArg(fn, param, first+i, v)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return nodes, nil
}

// Palette wraps a registry palette. It has no value of its own and is only
// consumed by ramp().
type Palette struct {
	composite
	palette *palettes.Palette
}

// NewPalette wraps p.
func NewPalette(p *palettes.Palette) (*Palette, error) {
	if p == nil {
		return nil, types.NewError(types.ErrInvalidParameter, "nil palette").WithExpr("palette")
	}
	return &Palette{palette: p}, nil
}

func (p *Palette) Name() string     { return "palette" }
func (p *Palette) Type() types.Type { return types.TypePalette }

// Palette returns the wrapped registry palette.
func (p *Palette) Palette() *palettes.Palette { return p.palette }

func (p *Palette) Eval(types.Feature) (any, error) { return p.palette, nil }
func (p *Palette) Compile(*types.Metadata) error   { return nil }

func (p *Palette) EmitShaderSource(*UniformIDs, PropertyResolver) (ShaderSource, error) {
	return ShaderSource{}, types.NewError(types.ErrInvalidParameterType, "a palette has no shader value").WithExpr(p.Name())
}

// CustomPalette is an explicit list of colors.
type CustomPalette struct {
	composite
	colors []Node
}

// NewCustomPalette creates a palette from color nodes.
func NewCustomPalette(colors ...Node) (*CustomPalette, error) {
	if len(colors) == 0 {
		return nil, types.NewError(types.ErrInvalidParameter, "empty color list").WithExpr("palette")
	}
	children := make([]Child, len(colors))
	for i, c := range colors {
		if err := checkLooseType("palette", "color", i, c, types.TypeColor); err != nil {
			return nil, err
		}
		children[i] = Child{Name: "color" + itoa(i), Node: c}
	}
	return &CustomPalette{composite: composite{children: children}, colors: colors}, nil
}

func (p *CustomPalette) Name() string     { return "palette" }
func (p *CustomPalette) Type() types.Type { return types.TypeCustomPalette }

// Colors evaluates the palette colors. Colors must not depend on features.
func (p *CustomPalette) Colors() ([]types.Color, error) {
	out := make([]types.Color, len(p.colors))
	for i, c := range p.colors {
		v, err := evalColor(c, nil)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *CustomPalette) Eval(types.Feature) (any, error) { return p.Colors() }

func (p *CustomPalette) Compile(meta *types.Metadata) error {
	if err := p.compileChildren(meta); err != nil {
		return err
	}
	for i, c := range p.colors {
		if err := checkType("palette", "color", i, c, types.TypeColor); err != nil {
			return err
		}
	}
	return nil
}

func (p *CustomPalette) EmitShaderSource(*UniformIDs, PropertyResolver) (ShaderSource, error) {
	return ShaderSource{}, types.NewError(types.ErrInvalidParameterType, "a palette has no shader value").WithExpr(p.Name())
}

// CustomNumberPalette is an explicit list of numbers; ramp() over it
// interpolates numbers instead of colors.
type CustomNumberPalette struct {
	composite
	values []Node
}

// NewCustomNumberPalette creates a palette from number nodes.
func NewCustomNumberPalette(values ...Node) (*CustomNumberPalette, error) {
	if len(values) == 0 {
		return nil, types.NewError(types.ErrInvalidParameter, "empty number list").WithExpr("palette")
	}
	children := make([]Child, len(values))
	for i, v := range values {
		if err := checkLooseType("palette", "value", i, v, types.TypeNumber); err != nil {
			return nil, err
		}
		children[i] = Child{Name: "value" + itoa(i), Node: v}
	}
	return &CustomNumberPalette{composite: composite{children: children}, values: values}, nil
}

func (p *CustomNumberPalette) Name() string     { return "palette" }
func (p *CustomNumberPalette) Type() types.Type { return types.TypeCustomPalette }

func (p *CustomNumberPalette) Eval(f types.Feature) (any, error) {
	out := make([]float64, len(p.values))
	for i, v := range p.values {
		x, err := evalFloat(v, f)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func (p *CustomNumberPalette) Compile(meta *types.Metadata) error {
	if err := p.compileChildren(meta); err != nil {
		return err
	}
	for i, v := range p.values {
		if err := checkType("palette", "value", i, v, types.TypeNumber); err != nil {
			return err
		}
	}
	return nil
}

func (p *CustomNumberPalette) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	return ShaderSource{}, types.NewError(types.ErrInvalidParameterType, "a palette has no shader value").WithExpr(p.Name())
}
