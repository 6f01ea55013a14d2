package expressions

import (
	"fmt"
	"math"
	"time"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/types"
)

// Transition goes linearly from 0 to 1 over duration seconds, starting when
// it is created.
type Transition struct {
	composite
	duration float64
	start    time.Time
	clock    Clock

	uniforms uniformBinding
}

// NewTransition creates transition(duration). duration must not be negative;
// a zero duration is complete immediately.
func NewTransition(duration float64, clock Clock) (*Transition, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return nil, types.Errorf(types.ErrInvalidParameter, "invalid first parameter 'duration'\n\tduration must be a finite number >= 0, got %v", duration).WithExpr("transition")
	}
	return &Transition{duration: duration, start: clock.now(), clock: clock}, nil
}

func (t *Transition) Name() string     { return "transition" }
func (t *Transition) Type() types.Type { return types.TypeNumber }

// Progress returns the transition position in [0, 1].
func (t *Transition) Progress() float64 {
	if t.duration == 0 {
		return 1
	}
	elapsed := t.clock.now().Sub(t.start).Seconds()
	return clamp(elapsed/t.duration, 0, 1)
}

// Done reports whether the transition has completed.
func (t *Transition) Done() bool { return t.Progress() >= 1 }

func (t *Transition) Eval(types.Feature) (any, error) { return t.Progress(), nil }
func (t *Transition) Compile(*types.Metadata) error   { return nil }

func (t *Transition) EmitShaderSource(ids *UniformIDs, _ PropertyResolver) (ShaderSource, error) {
	uid, declared := t.uniforms.id(ids)
	name := "transition" + itoa(uid)
	if declared {
		return ShaderSource{Inline: name}, nil
	}
	return ShaderSource{Preface: fmt.Sprintf("uniform float %s;\n", name), Inline: name}, nil
}

func (t *Transition) BindUniforms(gl gpu.Context, program gpu.Program) error {
	t.uniforms.bind(gl, program, "transition")
	return nil
}

func (t *Transition) SetUniforms(gl gpu.Context, ds *DrawState) error {
	gl.Uniform1f(t.uniforms.loc(ds.Program, 0), float32(t.Progress()))
	return nil
}

// Blend mixes two numbers or two colors: a*(1-mix) + b*mix.
type Blend struct {
	composite
	a, b, mix Node
}

// NewBlend creates blend(a, b, mix).
func NewBlend(a, b, mix any) (*Blend, error) {
	nodes, err := castAll("blend", "operand", 0, []any{a, b, mix})
	if err != nil {
		return nil, err
	}
	for i := 0; i < 2; i++ {
		if err := checkLooseType("blend", "operand", i, nodes[i], types.TypeNumber, types.TypeColor); err != nil {
			return nil, err
		}
	}
	if ta, tb := nodes[0].Type(), nodes[1].Type(); ta != types.TypeUnknown && tb != types.TypeUnknown && ta != tb {
		return nil, typeMismatch(types.ErrInvalidParameter, "blend", "b", 1, []types.Type{ta}, tb)
	}
	if err := checkLooseType("blend", "mix", 2, nodes[2], types.TypeNumber); err != nil {
		return nil, err
	}
	return &Blend{
		composite: composite{children: []Child{{"a", nodes[0]}, {"b", nodes[1]}, {"mix", nodes[2]}}},
		a:         nodes[0],
		b:         nodes[1],
		mix:       nodes[2],
	}, nil
}

func (n *Blend) Name() string { return "blend" }

func (n *Blend) Type() types.Type {
	if t := n.a.Type(); t != types.TypeUnknown {
		return t
	}
	return n.b.Type()
}

// Mix returns the mix operand.
func (n *Blend) Mix() Node { return n.mix }

func (n *Blend) Eval(f types.Feature) (any, error) {
	m, err := evalFloat(n.mix, f)
	if err != nil {
		return nil, err
	}
	if n.Type() == types.TypeColor {
		a, err := evalColor(n.a, f)
		if err != nil {
			return nil, err
		}
		b, err := evalColor(n.b, f)
		if err != nil {
			return nil, err
		}
		return a.Lerp(b, m), nil
	}
	a, err := evalFloat(n.a, f)
	if err != nil {
		return nil, err
	}
	b, err := evalFloat(n.b, f)
	if err != nil {
		return nil, err
	}
	return a*(1-m) + b*m, nil
}

func (n *Blend) Compile(meta *types.Metadata) error {
	if err := n.compileChildren(meta); err != nil {
		return err
	}
	if err := checkType("blend", "a", 0, n.a, types.TypeNumber, types.TypeColor); err != nil {
		return err
	}
	if err := checkType("blend", "b", 1, n.b, n.a.Type()); err != nil {
		return err
	}
	return checkType("blend", "mix", 2, n.mix, types.TypeNumber)
}

func (n *Blend) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	preface, in, err := n.emitChildren(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	return ShaderSource{Preface: preface, Inline: fmt.Sprintf("mix(%s, %s, %s)", in["a"], in["b"], in["mix"])}, nil
}
