// Package viz holds the style of a layer: one expression tree per style
// property, compiled against dataset metadata into style shader programs.
//
// # Example
//
//	v, err := viz.New(map[string]any{
//	    "color": ramp,
//	    "width": 7,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := v.CompileShaders(gl, meta); err != nil {
//	    log.Fatal(err)
//	}
//
// A Viz is bound to one rendering context at a time and is not safe for
// concurrent use; the layer owning it serializes access.
package viz

import (
	"fmt"
	"sort"

	"github.com/sandrolain/goviz/pkg/expressions"
	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/shader"
	"github.com/sandrolain/goviz/pkg/types"
)

// DefaultBlendDuration is the transition length used by BlendFrom when the
// caller passes a negative duration, in seconds.
const DefaultBlendDuration = 0.4

var styleTypes = map[types.StyleProperty]types.Type{
	types.StyleColor:       types.TypeColor,
	types.StyleWidth:       types.TypeNumber,
	types.StyleStrokeColor: types.TypeColor,
	types.StyleStrokeWidth: types.TypeNumber,
	types.StyleFilter:      types.TypeNumber,
	types.StyleOrder:       types.TypeOrderer,
}

var templates = map[types.StyleProperty]shader.Template{
	types.StyleColor:       shader.ColorTemplate,
	types.StyleWidth:       shader.WidthTemplate,
	types.StyleStrokeColor: shader.ColorTemplate,
	types.StyleStrokeWidth: shader.WidthTemplate,
	types.StyleFilter:      shader.FilterTemplate,
}

func defaultStyle(p types.StyleProperty) (expressions.Node, error) {
	switch p {
	case types.StyleColor, types.StyleStrokeColor:
		return expressions.NewRGB(0, 0, 0)
	case types.StyleWidth:
		return expressions.NewNumber(5)
	case types.StyleStrokeWidth:
		return expressions.NewNumber(0)
	case types.StyleFilter:
		return expressions.NewNumber(1)
	default:
		return expressions.NewNoOrder(), nil
	}
}

// Viz is a set of style expressions.
type Viz struct {
	styles   map[types.StyleProperty]expressions.Node
	options  Options
	meta     *types.Metadata // metadata of the compiled programs
	treeMeta *types.Metadata // metadata the trees are bound to
	compiled map[types.StyleProperty]*shader.Compiled
	owner    any

	// Set on blended vizs only.
	from, to   *Viz
	transition *expressions.Transition
}

// New builds a viz from style values. Values go through expressions.Cast, so
// plain numbers and color strings are accepted. Missing styles get their
// defaults: black color and stroke, width 5, stroke width 0, filter 1 and no
// order.
func New(styles map[string]any, opts ...Option) (*Viz, error) {
	v := &Viz{
		styles:  make(map[types.StyleProperty]expressions.Node, len(styleTypes)),
		options: newOptions(opts),
	}
	for name, value := range styles {
		p, ok := types.ParseStyleProperty(name)
		if !ok {
			return nil, types.Errorf(types.ErrUnknownStyle, "unknown style property %q", name)
		}
		n, err := expressions.Cast(value)
		if err != nil {
			return nil, fmt.Errorf("style %s: %w", p, err)
		}
		if t := n.Type(); t != types.TypeUnknown && t != styleTypes[p] {
			return nil, styleTypeError(types.ErrInvalidParameter, p, t)
		}
		v.styles[p] = n
	}
	for p := range styleTypes {
		if _, ok := v.styles[p]; ok {
			continue
		}
		n, err := defaultStyle(p)
		if err != nil {
			return nil, err
		}
		v.styles[p] = n
	}
	return v, nil
}

// MustNew is like New but panics on error.
func MustNew(styles map[string]any, opts ...Option) *Viz {
	v, err := New(styles, opts...)
	if err != nil {
		panic(err)
	}
	return v
}

func styleTypeError(code types.ErrorCode, p types.StyleProperty, actual types.Type) error {
	return types.Errorf(code, "invalid style '%s'\n\texpected type was %s\n\tactual type was %s",
		p, styleTypes[p], actual)
}

// Claim binds v to owner. A viz serves a single owner at a time.
func (v *Viz) Claim(owner any) error {
	if v.owner != nil && v.owner != owner {
		return types.NewError(types.ErrInvalidParameter, "viz is already bound to another layer")
	}
	v.owner = owner
	return nil
}

// Release unbinds v from owner.
func (v *Viz) Release(owner any) {
	if v.owner == owner {
		v.owner = nil
	}
}

// Style returns the expression of a style property.
func (v *Viz) Style(p types.StyleProperty) expressions.Node {
	return v.styles[p]
}

// Metadata returns the metadata of the last successful compile.
func (v *Viz) Metadata() *types.Metadata {
	return v.meta
}

// Order returns the feature ordering.
func (v *Viz) Order() expressions.Order {
	if o, ok := v.styles[types.StyleOrder].(*expressions.Orderer); ok {
		return o.Order()
	}
	return expressions.Order{}
}

// PropertyNames returns the sorted names of every dataset property the viz
// reads.
func (v *Viz) PropertyNames() []string {
	seen := make(map[string]bool)
	for _, n := range v.styles {
		expressions.Walk(n, func(n expressions.Node) {
			if p, ok := n.(*expressions.Property); ok {
				seen[p.PropertyName()] = true
			}
		})
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile binds every style to meta and runs the strict type checks. On
// error the trees are bound back to the metadata of the last successful
// compile, so host evaluation keeps working.
func (v *Viz) Compile(meta *types.Metadata) error {
	if err := v.compileStyles(meta); err != nil {
		v.restore(v.treeMeta)
		return err
	}
	v.treeMeta = meta
	return nil
}

func (v *Viz) compileStyles(meta *types.Metadata) error {
	for _, p := range sortedStyles(v.styles) {
		n := v.styles[p]
		if err := n.Compile(meta); err != nil {
			return fmt.Errorf("style %s: %w", p, err)
		}
		if t := n.Type(); t != styleTypes[p] {
			return styleTypeError(types.ErrInvalidParameterType, p, t)
		}
	}
	return nil
}

// restore recompiles the trees against meta, a metadata they compiled
// against before.
func (v *Viz) restore(meta *types.Metadata) {
	if meta == nil {
		return
	}
	if err := v.compileStyles(meta); err != nil {
		v.options.Logger.Warn("restoring viz compile state", "error", err)
		return
	}
	v.treeMeta = meta
}

// CompileShaders compiles the viz against meta and links one style program
// per shaded style. On error the previously compiled programs, metadata and
// host state stay in place.
func (v *Viz) CompileShaders(gl gpu.Context, meta *types.Metadata) error {
	compiled, err := v.linkShaders(gl, meta)
	if err != nil {
		v.restore(v.meta)
		return err
	}
	v.compiled = compiled
	v.meta = meta
	v.options.Logger.Debug("compiled viz", "styles", len(compiled), "properties", v.PropertyNames())
	return nil
}

func (v *Viz) linkShaders(gl gpu.Context, meta *types.Metadata) (map[types.StyleProperty]*shader.Compiled, error) {
	if err := v.Compile(meta); err != nil {
		return nil, err
	}
	compiled := make(map[types.StyleProperty]*shader.Compiled, len(types.ShadedStyles))
	for _, p := range types.ShadedStyles {
		factory := shader.NewFactory(templates[p], v.options.Cache, shader.WithLogger(v.options.Logger))
		c, err := shader.Compile(gl, v.styles[p], factory, shader.WithLogger(v.options.Logger))
		if err != nil {
			return nil, fmt.Errorf("style %s: %w", p, err)
		}
		compiled[p] = c
	}
	return compiled, nil
}

// Shader returns the compiled program of a shaded style.
func (v *Viz) Shader(p types.StyleProperty) (*shader.Compiled, error) {
	c, ok := v.compiled[p]
	if !ok {
		return nil, types.Errorf(types.ErrNotCompiled, "style %s has no compiled shader", p)
	}
	return c, nil
}

// Eval evaluates a style for one feature on the host.
func (v *Viz) Eval(p types.StyleProperty, f types.Feature) (any, error) {
	n, ok := v.styles[p]
	if !ok {
		return nil, types.Errorf(types.ErrUnknownStyle, "unknown style property %q", p)
	}
	return n.Eval(f)
}

// Number evaluates a numeric style for one feature.
func (v *Viz) Number(p types.StyleProperty, f types.Feature) (float64, error) {
	val, err := v.Eval(p, f)
	if err != nil {
		return 0, err
	}
	x, ok := val.(float64)
	if !ok {
		return 0, styleTypeError(types.ErrInvalidParameterType, p, types.TypeColor)
	}
	return x, nil
}

// Color evaluates a color style for one feature.
func (v *Viz) Color(p types.StyleProperty, f types.Feature) (types.Color, error) {
	val, err := v.Eval(p, f)
	if err != nil {
		return types.Color{}, err
	}
	c, ok := val.(types.Color)
	if !ok {
		return types.Color{}, styleTypeError(types.ErrInvalidParameterType, p, types.TypeNumber)
	}
	return c, nil
}

// Animated reports whether the viz changes over time: it holds a torque, a
// now() or an unfinished transition.
func (v *Viz) Animated() bool {
	animated := false
	for _, n := range v.styles {
		expressions.Walk(n, func(n expressions.Node) {
			switch x := n.(type) {
			case *expressions.Torque, *expressions.Now:
				animated = true
			case *expressions.Transition:
				animated = animated || !x.Done()
			}
		})
	}
	return animated
}

// BlendFrom returns a viz going from prev to v over duration seconds, timed
// by clock or, when nil, by the clock of v. A negative duration uses
// DefaultBlendDuration. The order style is taken from v. Both vizs are shared
// into the result; draw only the result from now on.
func (v *Viz) BlendFrom(prev *Viz, duration float64, clock expressions.Clock) (*Viz, error) {
	if duration < 0 {
		duration = DefaultBlendDuration
	}
	if clock == nil {
		clock = v.options.Clock
	}
	tr, err := expressions.NewTransition(duration, clock)
	if err != nil {
		return nil, err
	}
	b := &Viz{
		styles:     make(map[types.StyleProperty]expressions.Node, len(v.styles)),
		options:    v.options,
		from:       prev,
		to:         v,
		transition: tr,
	}
	for p, n := range v.styles {
		if p == types.StyleOrder {
			b.styles[p] = n
			continue
		}
		blend, err := expressions.NewBlend(prev.styles[p], n, tr)
		if err != nil {
			return nil, fmt.Errorf("blending style %s: %w", p, err)
		}
		b.styles[p] = blend
	}
	return b, nil
}

// Target returns the viz a blend moves to, nil when v is not a blend.
func (v *Viz) Target() *Viz {
	if v == nil {
		return nil
	}
	return v.to
}

// Blending reports whether v is a blend whose transition is still running.
func (v *Viz) Blending() bool {
	return v.transition != nil && !v.transition.Done()
}

// Finish ends a blend: it frees the trees only the previous viz uses and
// returns the target viz, which must be compiled again before drawing. On a
// viz that is not a blend it returns v.
func (v *Viz) Finish(gl gpu.Context) *Viz {
	if v.to == nil {
		return v
	}
	for p, n := range v.from.styles {
		if v.to.styles[p] != n {
			n.Free(gl)
		}
	}
	return v.to
}

// Free releases the GPU resources of every style tree.
func (v *Viz) Free(gl gpu.Context) {
	for _, n := range v.styles {
		n.Free(gl)
	}
	v.compiled = nil
}

func sortedStyles(m map[types.StyleProperty]expressions.Node) []types.StyleProperty {
	keys := make([]types.StyleProperty, 0, len(m))
	for p := range m {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
