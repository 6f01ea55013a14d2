package expressions

import (
	"fmt"

	"github.com/sandrolain/goviz/pkg/types"
)

// RGBA builds a color from numeric channels: r, g and b in [0, 255], a in
// [0, 1].
type RGBA struct {
	composite
	name       string
	r, g, b, a Node
}

// NewRGB creates rgb(r, g, b) with alpha 1.
func NewRGB(r, g, b any) (*RGBA, error) {
	one, _ := NewNumber(1)
	return newRGBA("rgb", r, g, b, one)
}

// NewRGBA creates rgba(r, g, b, a).
func NewRGBA(r, g, b, a any) (*RGBA, error) {
	return newRGBA("rgba", r, g, b, a)
}

func newRGBA(fn string, r, g, b, a any) (*RGBA, error) {
	names := []string{"r", "g", "b", "a"}
	nodes, err := castAll(fn, "channel", 0, []any{r, g, b, a})
	if err != nil {
		return nil, err
	}
	children := make([]Child, 4)
	for i, n := range nodes {
		if err := checkLooseType(fn, names[i], i, n, types.TypeNumber); err != nil {
			return nil, err
		}
		children[i] = Child{Name: names[i], Node: n}
	}
	return &RGBA{
		composite: composite{children: children},
		name:      fn,
		r:         nodes[0],
		g:         nodes[1],
		b:         nodes[2],
		a:         nodes[3],
	}, nil
}

func (c *RGBA) Name() string     { return c.name }
func (c *RGBA) Type() types.Type { return types.TypeColor }

func (c *RGBA) Eval(f types.Feature) (any, error) {
	var ch [4]float64
	for i, n := range []Node{c.r, c.g, c.b, c.a} {
		v, err := evalFloat(n, f)
		if err != nil {
			return nil, err
		}
		ch[i] = v
	}
	return types.Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

func (c *RGBA) Compile(meta *types.Metadata) error {
	if err := c.compileChildren(meta); err != nil {
		return err
	}
	for i, ch := range c.children {
		if err := checkType(c.name, ch.Name, i, ch.Node, types.TypeNumber); err != nil {
			return err
		}
	}
	return nil
}

func (c *RGBA) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	preface, in, err := c.emitChildren(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	return ShaderSource{
		Preface: preface,
		Inline:  fmt.Sprintf("vec4((%s)/255.0, (%s)/255.0, (%s)/255.0, %s)", in["r"], in["g"], in["b"], in["a"]),
	}, nil
}
