package expressions

import (
	"fmt"
	"math"
	"time"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/types"
)

// DefaultFade is the fade in and fade out duration of fade() without
// arguments, in seconds.
const DefaultFade = 0.15

// DefaultTorqueDuration is the animation duration of torque() in seconds.
const DefaultTorqueDuration = 10.0

// Fade is a fade in / fade out pair, in seconds.
type Fade struct {
	composite
	in, out Node
}

// NewFade creates fade(). With no arguments both durations are DefaultFade;
// with one argument both durations are equal.
func NewFade(durations ...any) (*Fade, error) {
	var in, out any
	switch len(durations) {
	case 0:
		in, out = DefaultFade, DefaultFade
	case 1:
		in, out = durations[0], durations[0]
	case 2:
		in, out = durations[0], durations[1]
	default:
		return nil, types.Errorf(types.ErrArgumentCount, "expected at most 2 parameters, got %d", len(durations)).WithExpr("fade")
	}
	nodes, err := castAll("fade", "duration", 0, []any{in, out})
	if err != nil {
		return nil, err
	}
	for i, n := range nodes {
		if err := checkLooseType("fade", "duration", i, n, types.TypeNumber); err != nil {
			return nil, err
		}
	}
	return &Fade{
		composite: composite{children: []Child{{"fadeIn", nodes[0]}, {"fadeOut", nodes[1]}}},
		in:        nodes[0],
		out:       nodes[1],
	}, nil
}

func (f *Fade) Name() string     { return "fade" }
func (f *Fade) Type() types.Type { return types.TypeFade }

func (f *Fade) Eval(feature types.Feature) (any, error) {
	in, err := evalFloat(f.in, feature)
	if err != nil {
		return nil, err
	}
	out, err := evalFloat(f.out, feature)
	if err != nil {
		return nil, err
	}
	return types.FadeValue{In: in, Out: out}, nil
}

func (f *Fade) Compile(meta *types.Metadata) error {
	if err := f.compileChildren(meta); err != nil {
		return err
	}
	if err := checkType("fade", "fadeIn", 0, f.in, types.TypeNumber); err != nil {
		return err
	}
	return checkType("fade", "fadeOut", 1, f.out, types.TypeNumber)
}

// EmitShaderSource emits the pair as vec2(fadeIn, fadeOut).
func (f *Fade) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	preface, in, err := f.emitChildren(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	return ShaderSource{Preface: preface, Inline: fmt.Sprintf("vec2(%s, %s)", in["fadeIn"], in["fadeOut"])}, nil
}

// Torque is an animated filter. A cycle runs from 0 to 1 every duration
// seconds; a feature is fully visible when its input equals the cycle and
// fades out as the two move apart.
type Torque struct {
	composite
	input    Node
	fade     *Fade
	duration float64
	clock    Clock

	uniforms uniformBinding
}

// NewTorque creates torque(input, duration, fade). A bare property input is
// normalized over its global range. duration must be finite and positive;
// pass DefaultTorqueDuration and a nil fade for the defaults.
func NewTorque(input any, duration float64, fade *Fade, clock Clock) (*Torque, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return nil, types.Errorf(types.ErrInvalidParameter, "invalid second parameter 'duration'\n\tduration must be a positive finite number, got %v", duration).WithExpr("torque")
	}
	in, err := castArg("torque", "input", 0, input)
	if err != nil {
		return nil, err
	}
	if p, ok := in.(*Property); ok {
		if in, err = NewLinearProperty(p); err != nil {
			return nil, err
		}
	}
	if err := checkLooseType("torque", "input", 0, in, types.TypeNumber); err != nil {
		return nil, err
	}
	if fade == nil {
		if fade, err = NewFade(); err != nil {
			return nil, err
		}
	}
	return &Torque{
		composite: composite{children: []Child{{"input", in}, {"fade", fade}}},
		input:     in,
		fade:      fade,
		duration:  duration,
		clock:     clock,
	}, nil
}

func (t *Torque) Name() string     { return "torque" }
func (t *Torque) Type() types.Type { return types.TypeNumber }

// Duration returns the animation duration in seconds.
func (t *Torque) Duration() float64 { return t.duration }

// Cycle returns the animation position in [0, 1) at the current time.
func (t *Torque) Cycle() float64 {
	now := unixSeconds(t.clock.now())
	return glslMod(now, t.duration) / t.duration
}

// SimTime maps the current cycle back into the input domain. For a linear
// input over dates the result is a time.Time, for numeric bounds a float64;
// any other input yields the cycle itself.
func (t *Torque) SimTime() (any, error) {
	c := t.Cycle()
	l, ok := t.input.(*Linear)
	if !ok {
		return c, nil
	}
	lo, hi, err := l.Bounds()
	if err != nil {
		return nil, err
	}
	if tmin, ok := lo.(time.Time); ok {
		tmax, ok := hi.(time.Time)
		if !ok {
			return nil, types.NewError(types.ErrInvalidParameterType, "linear bounds mix dates and numbers").WithExpr(t.Name())
		}
		ms := float64(tmin.UnixMilli())*(1-c) + float64(tmax.UnixMilli())*c
		return time.UnixMilli(int64(math.Round(ms))).UTC(), nil
	}
	min, err := toFloat(t.Name(), lo)
	if err != nil {
		return nil, err
	}
	max, err := toFloat(t.Name(), hi)
	if err != nil {
		return nil, err
	}
	return min + c*(max-min), nil
}

func (t *Torque) Eval(f types.Feature) (any, error) {
	input, err := evalFloat(t.input, f)
	if err != nil {
		return nil, err
	}
	fv, err := t.fade.Eval(f)
	if err != nil {
		return nil, err
	}
	fade := fv.(types.FadeValue)
	cycle := t.Cycle()
	width := fade.Out
	if input > cycle {
		width = fade.In
	}
	return 1 - clamp(math.Abs(input-cycle)*t.duration/width, 0, 1), nil
}

func (t *Torque) Compile(meta *types.Metadata) error {
	if err := t.compileChildren(meta); err != nil {
		return err
	}
	return checkType("torque", "input", 0, t.input, types.TypeNumber)
}

func (t *Torque) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	input, err := t.input.EmitShaderSource(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	fadePreface, fade, err := t.fade.emitChildren(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	uid, declared := t.uniforms.id(ids)
	cycle := "torqueCycle" + itoa(uid)
	preface := input.Preface + fadePreface
	if !declared {
		preface += fmt.Sprintf("uniform float %s;\n", cycle)
	}
	return ShaderSource{
		Preface: preface,
		Inline: fmt.Sprintf("(1.0 - clamp(abs(%s-%s)*(%s)/((%s>%s) ? (%s) : (%s)), 0.0, 1.0))",
			input.Inline, cycle, glslFloat(t.duration), input.Inline, cycle, fade["fadeIn"], fade["fadeOut"]),
	}, nil
}

func (t *Torque) BindUniforms(gl gpu.Context, program gpu.Program) error {
	if err := t.composite.BindUniforms(gl, program); err != nil {
		return err
	}
	t.uniforms.bind(gl, program, "torqueCycle")
	return nil
}

// SetUniforms uploads the cycle computed on the host, so the GPU never
// handles the absolute time.
func (t *Torque) SetUniforms(gl gpu.Context, ds *DrawState) error {
	if err := t.composite.SetUniforms(gl, ds); err != nil {
		return err
	}
	gl.Uniform1f(t.uniforms.loc(ds.Program, 0), float32(t.Cycle()))
	return nil
}
