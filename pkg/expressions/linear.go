package expressions

import (
	"fmt"

	"github.com/sandrolain/goviz/pkg/types"
)

// Linear maps input from [min, max] to [0, 1] without clamping. Inputs and
// bounds may be numbers or dates; dates are compared as Unix seconds.
type Linear struct {
	composite
	input, min, max Node
}

// NewLinear creates linear(input, min, max).
func NewLinear(input, min, max any) (*Linear, error) {
	nodes, err := castAll("linear", "input", 0, []any{input, min, max})
	if err != nil {
		return nil, err
	}
	names := []string{"input", "min", "max"}
	children := make([]Child, 3)
	for i, n := range nodes {
		if err := checkLooseType("linear", names[i], i, n, types.TypeNumber, types.TypeDate); err != nil {
			return nil, err
		}
		children[i] = Child{Name: names[i], Node: n}
	}
	return &Linear{
		composite: composite{children: children},
		input:     nodes[0],
		min:       nodes[1],
		max:       nodes[2],
	}, nil
}

// NewLinearProperty creates linear(p, globalMin(p), globalMax(p)).
func NewLinearProperty(p *Property) (*Linear, error) {
	lo, err := NewGlobalMin(p)
	if err != nil {
		return nil, err
	}
	hi, err := NewGlobalMax(p)
	if err != nil {
		return nil, err
	}
	return NewLinear(p, lo, hi)
}

func (l *Linear) Name() string     { return "linear" }
func (l *Linear) Type() types.Type { return types.TypeNumber }

// Bounds evaluates the min and max children. They may be float64 or
// time.Time.
func (l *Linear) Bounds() (min, max any, err error) {
	if min, err = l.min.Eval(nil); err != nil {
		return nil, nil, err
	}
	if max, err = l.max.Eval(nil); err != nil {
		return nil, nil, err
	}
	return min, max, nil
}

func (l *Linear) Eval(f types.Feature) (any, error) {
	x, err := evalFloat(l.input, f)
	if err != nil {
		return nil, err
	}
	lo, err := evalFloat(l.min, f)
	if err != nil {
		return nil, err
	}
	hi, err := evalFloat(l.max, f)
	if err != nil {
		return nil, err
	}
	return (x - lo) / (hi - lo), nil
}

func (l *Linear) Compile(meta *types.Metadata) error {
	if err := l.compileChildren(meta); err != nil {
		return err
	}
	for i, ch := range l.children {
		if err := checkType("linear", ch.Name, i, ch.Node, types.TypeNumber, types.TypeDate); err != nil {
			return err
		}
	}
	return nil
}

func (l *Linear) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	preface, in, err := l.emitChildren(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	return ShaderSource{
		Preface: preface,
		Inline:  fmt.Sprintf("((%s - %s) / (%s - %s))", in["input"], in["min"], in["max"], in["min"]),
	}, nil
}
