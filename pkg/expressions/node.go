// Package expressions implements the viz expression tree.
//
// Every node has two evaluators that must agree: Eval computes the value on
// the host for a single feature, and EmitShaderSource produces the GLSL that
// computes it on the GPU for every feature at once. A node is driven through
// Compile, EmitShaderSource, BindUniforms and SetUniforms, in that order.
//
// Nodes are built by the New* constructors, which cast raw Go values into
// nodes (see Cast) and run the type checks that are possible before dataset
// metadata is known. The remaining checks run in Compile.
package expressions

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/types"
)

// Node is an expression tree node. The set of implementations is closed.
type Node interface {
	// Name is the function name of the node, e.g. "buckets".
	Name() string
	// Type is the node type. It may be types.TypeUnknown until Compile.
	Type() types.Type
	// Children returns the named children in emission order.
	Children() []Child

	// Eval evaluates the node on the host for one feature.
	Eval(f types.Feature) (any, error)
	// Compile binds the node and its children to dataset metadata.
	Compile(meta *types.Metadata) error
	// EmitShaderSource returns the GLSL preface and inline code.
	EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error)
	// BindUniforms resolves uniform locations against a linked program.
	BindUniforms(gl gpu.Context, program gpu.Program) error
	// SetUniforms uploads the uniform values for one draw.
	SetUniforms(gl gpu.Context, ds *DrawState) error
	// Free releases the GPU resources owned by the node and its children.
	Free(gl gpu.Context)

	sealed()
}

// Child is a named child of a node.
type Child struct {
	Name string
	Node Node
}

// ShaderSource is the GLSL produced by a node: declarations and helper
// functions go to Preface, the value expression to Inline.
type ShaderSource struct {
	Preface string
	Inline  string
}

// PropertyResolver returns the GLSL that reads a property for the current
// feature.
type PropertyResolver func(name string) string

// UniformIDs hands out uniform name suffixes for one shader compile pass.
type UniformIDs struct {
	next int
}

// Next returns a fresh id.
func (u *UniformIDs) Next() int {
	id := u.next
	u.next++
	return id
}

// DrawState is the per-draw mutable state threaded through SetUniforms.
// It must be created fresh for every draw.
type DrawState struct {
	// Program is the program in use for the draw.
	Program gpu.Program
	// FreeTexUnit is the next texture unit nobody has bound yet.
	FreeTexUnit int
}

// TakeTexUnit returns the next free texture unit and advances the counter.
func (ds *DrawState) TakeTexUnit() int {
	u := ds.FreeTexUnit
	ds.FreeTexUnit++
	return u
}

// uniformBinding tracks the uniforms of a node that may sit in several
// style programs: the id it got in the latest compile pass and the
// locations it resolved in each program it was bound to.
type uniformBinding struct {
	pass *UniformIDs
	uid  int
	locs map[gpu.Program][]gpu.UniformLocation
}

// id returns the uniform id of the node in the pass driven by ids. A node
// reached twice in one pass keeps its first id, and declared reports that
// its uniforms are already in the preface.
func (b *uniformBinding) id(ids *UniformIDs) (uid int, declared bool) {
	if b.pass == ids {
		return b.uid, true
	}
	b.pass, b.uid = ids, ids.Next()
	return b.uid, false
}

// bind resolves the uniforms named prefix+uid against program, in order.
func (b *uniformBinding) bind(gl gpu.Context, program gpu.Program, prefixes ...string) {
	locs := make([]gpu.UniformLocation, len(prefixes))
	for i, prefix := range prefixes {
		locs[i] = gl.UniformLocation(program, prefix+itoa(b.uid))
	}
	if b.locs == nil {
		b.locs = make(map[gpu.Program][]gpu.UniformLocation)
	}
	b.locs[program] = locs
}

// loc returns the i-th location bound in program, gpu.NoLocation if the
// node was never bound to it.
func (b *uniformBinding) loc(program gpu.Program, i int) gpu.UniformLocation {
	locs := b.locs[program]
	if i >= len(locs) {
		return gpu.NoLocation
	}
	return locs[i]
}

// Clock returns the current time. A nil Clock reads the wall clock.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// composite carries the children of a node and the traversal shared by all
// variants. Variants embed it and override what they need.
type composite struct {
	children []Child
}

func (c *composite) sealed() {}

func (c *composite) Children() []Child {
	return c.children
}

func (c *composite) compileChildren(meta *types.Metadata) error {
	for _, ch := range c.children {
		if err := ch.Node.Compile(meta); err != nil {
			return err
		}
	}
	return nil
}

// emitChildren emits every child and returns their concatenated prefaces
// with the inline code indexed by child name.
func (c *composite) emitChildren(ids *UniformIDs, prop PropertyResolver) (string, map[string]string, error) {
	var preface strings.Builder
	inlines := make(map[string]string, len(c.children))
	for _, ch := range c.children {
		src, err := ch.Node.EmitShaderSource(ids, prop)
		if err != nil {
			return "", nil, err
		}
		preface.WriteString(src.Preface)
		inlines[ch.Name] = src.Inline
	}
	return preface.String(), inlines, nil
}

func (c *composite) BindUniforms(gl gpu.Context, program gpu.Program) error {
	for _, ch := range c.children {
		if err := ch.Node.BindUniforms(gl, program); err != nil {
			return err
		}
	}
	return nil
}

func (c *composite) SetUniforms(gl gpu.Context, ds *DrawState) error {
	for _, ch := range c.children {
		if err := ch.Node.SetUniforms(gl, ds); err != nil {
			return err
		}
	}
	return nil
}

func (c *composite) Free(gl gpu.Context) {
	for _, ch := range c.children {
		ch.Node.Free(gl)
	}
}

// Walk calls fn for n and every descendant, depth first.
func Walk(n Node, fn func(Node)) {
	fn(n)
	for _, ch := range n.Children() {
		Walk(ch.Node, fn)
	}
}

var ordinals = []string{"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth", "tenth"}

func ordinal(i int) string {
	if i >= 0 && i < len(ordinals) {
		return ordinals[i]
	}
	return strconv.Itoa(i+1) + "th"
}

func typeList(expected []types.Type) string {
	names := make([]string, len(expected))
	for i, t := range expected {
		names[i] = t.String()
	}
	return strings.Join(names, " or ")
}

func typeMismatch(code types.ErrorCode, fn, param string, idx int, expected []types.Type, actual types.Type) error {
	return types.Errorf(code, "invalid %s parameter '%s'\n\texpected type was %s\n\tactual type was %s",
		ordinal(idx), param, typeList(expected), actual).WithExpr(fn)
}

// checkLooseType is the construction time check: a node whose type is still
// unknown passes.
func checkLooseType(fn, param string, idx int, n Node, expected ...types.Type) error {
	if n == nil {
		return types.Errorf(types.ErrInvalidParameter, "invalid %s parameter '%s'\n\tparameter is missing", ordinal(idx), param).WithExpr(fn)
	}
	if n.Type() == types.TypeUnknown || n.Type().Is(expected...) {
		return nil
	}
	return typeMismatch(types.ErrInvalidParameter, fn, param, idx, expected, n.Type())
}

// checkType is the compile time check.
func checkType(fn, param string, idx int, n Node, expected ...types.Type) error {
	if n.Type().Is(expected...) {
		return nil
	}
	return typeMismatch(types.ErrInvalidParameterType, fn, param, idx, expected, n.Type())
}

// castArg casts v and wraps cast failures with the parameter position.
func castArg(fn, param string, idx int, v any) (Node, error) {
	if v == nil {
		return nil, types.Errorf(types.ErrInvalidParameter, "invalid %s parameter '%s'\n\tparameter is missing", ordinal(idx), param).WithExpr(fn)
	}
	n, err := Cast(v)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidParameter, "invalid %s parameter '%s'", ordinal(idx), param).WithExpr(fn).WithCause(err)
	}
	return n, nil
}

// glslFloat formats a finite float as a GLSL float literal.
func glslFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// glslColor formats a host color as a GLSL vec4 in [0, 1].
func glslColor(c types.Color) string {
	return fmt.Sprintf("vec4(%s, %s, %s, %s)", glslFloat(c.R/255), glslFloat(c.G/255), glslFloat(c.B/255), glslFloat(c.A))
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// evalFloat evaluates n and converts the result to a float. Dates become
// Unix seconds.
func evalFloat(n Node, f types.Feature) (float64, error) {
	v, err := n.Eval(f)
	if err != nil {
		return 0, err
	}
	return toFloat(n.Name(), v)
}

func toFloat(fn string, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case time.Time:
		return unixSeconds(x), nil
	}
	return 0, types.Errorf(types.ErrInvalidParameterType, "value of type %T is not numeric", v).WithExpr(fn)
}

func evalColor(n Node, f types.Feature) (types.Color, error) {
	v, err := n.Eval(f)
	if err != nil {
		return types.Color{}, err
	}
	c, ok := v.(types.Color)
	if !ok {
		return types.Color{}, types.Errorf(types.ErrInvalidParameterType, "value of type %T is not a color", v).WithExpr(n.Name())
	}
	return c, nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}

// freeTexture deletes *t if it is live and poisons the handle.
func freeTexture(gl gpu.Context, t *gpu.Texture) {
	if *t != 0 && *t != gpu.FreedTexture {
		gl.DeleteTexture(*t)
	}
	*t = gpu.FreedTexture
}

func errFreed(fn string) error {
	return types.NewError(types.ErrResourceFreed, "expression used after Free").WithExpr(fn)
}

func errNotCompiled(fn string) error {
	return types.NewError(types.ErrNotCompiled, "expression used before Compile").WithExpr(fn)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
