package expressions

import (
	"fmt"
	"math"

	"github.com/sandrolain/goviz/pkg/types"
)

type binaryOp struct {
	name   string
	accept []types.Type
	// sameType requires both operands to resolve to the same type.
	sameType bool
	eval     func(a, b float64) float64
	glsl     string // format with the two operand inlines
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// glslMod mirrors GLSL mod(): x - y*floor(x/y).
func glslMod(x, y float64) float64 {
	return x - y*math.Floor(x/y)
}

var (
	numeric   = []types.Type{types.TypeNumber}
	ordered   = []types.Type{types.TypeNumber, types.TypeDate}
	equatable = []types.Type{types.TypeNumber, types.TypeCategory, types.TypeDate}

	opAdd = &binaryOp{"add", numeric, false, func(a, b float64) float64 { return a + b }, "(%s + %s)"}
	opSub = &binaryOp{"sub", numeric, false, func(a, b float64) float64 { return a - b }, "(%s - %s)"}
	opMul = &binaryOp{"mul", numeric, false, func(a, b float64) float64 { return a * b }, "(%s * %s)"}
	opDiv = &binaryOp{"div", numeric, false, func(a, b float64) float64 { return a / b }, "(%s / %s)"}
	opMod = &binaryOp{"mod", numeric, false, glslMod, "mod(%s, %s)"}
	opPow = &binaryOp{"pow", numeric, false, math.Pow, "pow(%s, %s)"}

	opGreaterThan        = &binaryOp{"greaterThan", ordered, true, func(a, b float64) float64 { return boolFloat(a > b) }, "((%s) > (%s) ? 1.0 : 0.0)"}
	opGreaterThanOrEqual = &binaryOp{"greaterThanOrEqualTo", ordered, true, func(a, b float64) float64 { return boolFloat(a >= b) }, "((%s) >= (%s) ? 1.0 : 0.0)"}
	opLessThan           = &binaryOp{"lessThan", ordered, true, func(a, b float64) float64 { return boolFloat(a < b) }, "((%s) < (%s) ? 1.0 : 0.0)"}
	opLessThanOrEqual    = &binaryOp{"lessThanOrEqualTo", ordered, true, func(a, b float64) float64 { return boolFloat(a <= b) }, "((%s) <= (%s) ? 1.0 : 0.0)"}
	opEquals             = &binaryOp{"equals", equatable, true, func(a, b float64) float64 { return boolFloat(a == b) }, "((%s) == (%s) ? 1.0 : 0.0)"}
	opNotEquals          = &binaryOp{"notEquals", equatable, true, func(a, b float64) float64 { return boolFloat(a != b) }, "((%s) != (%s) ? 1.0 : 0.0)"}
)

// Binary is a binary numeric operator or comparison. Comparisons evaluate
// to 0 or 1.
type Binary struct {
	composite
	op   *binaryOp
	a, b Node
}

func newBinary(op *binaryOp, a, b any) (*Binary, error) {
	an, err := castArg(op.name, "x", 0, a)
	if err != nil {
		return nil, err
	}
	bn, err := castArg(op.name, "y", 1, b)
	if err != nil {
		return nil, err
	}
	if err := checkLooseType(op.name, "x", 0, an, op.accept...); err != nil {
		return nil, err
	}
	if err := checkLooseType(op.name, "y", 1, bn, op.accept...); err != nil {
		return nil, err
	}
	if op.sameType && an.Type() != types.TypeUnknown && bn.Type() != types.TypeUnknown && an.Type() != bn.Type() {
		return nil, typeMismatch(types.ErrInvalidParameter, op.name, "y", 1, []types.Type{an.Type()}, bn.Type())
	}
	return &Binary{
		composite: composite{children: []Child{{"x", an}, {"y", bn}}},
		op:        op,
		a:         an,
		b:         bn,
	}, nil
}

// NewAdd creates x + y.
func NewAdd(x, y any) (*Binary, error) { return newBinary(opAdd, x, y) }

// NewSub creates x - y.
func NewSub(x, y any) (*Binary, error) { return newBinary(opSub, x, y) }

// NewMul creates x * y.
func NewMul(x, y any) (*Binary, error) { return newBinary(opMul, x, y) }

// NewDiv creates x / y.
func NewDiv(x, y any) (*Binary, error) { return newBinary(opDiv, x, y) }

// NewMod creates mod(x, y) with GLSL semantics: the result has the sign of y.
func NewMod(x, y any) (*Binary, error) { return newBinary(opMod, x, y) }

// NewPow creates pow(x, y).
func NewPow(x, y any) (*Binary, error) { return newBinary(opPow, x, y) }

// NewGreaterThan creates x > y.
func NewGreaterThan(x, y any) (*Binary, error) { return newBinary(opGreaterThan, x, y) }

// NewGreaterThanOrEqual creates x >= y.
func NewGreaterThanOrEqual(x, y any) (*Binary, error) {
	return newBinary(opGreaterThanOrEqual, x, y)
}

// NewLessThan creates x < y.
func NewLessThan(x, y any) (*Binary, error) { return newBinary(opLessThan, x, y) }

// NewLessThanOrEqual creates x <= y.
func NewLessThanOrEqual(x, y any) (*Binary, error) { return newBinary(opLessThanOrEqual, x, y) }

// NewEquals creates x == y.
func NewEquals(x, y any) (*Binary, error) { return newBinary(opEquals, x, y) }

// NewNotEquals creates x != y.
func NewNotEquals(x, y any) (*Binary, error) { return newBinary(opNotEquals, x, y) }

func (n *Binary) Name() string     { return n.op.name }
func (n *Binary) Type() types.Type { return types.TypeNumber }

func (n *Binary) Eval(f types.Feature) (any, error) {
	a, err := evalFloat(n.a, f)
	if err != nil {
		return nil, err
	}
	b, err := evalFloat(n.b, f)
	if err != nil {
		return nil, err
	}
	return n.op.eval(a, b), nil
}

func (n *Binary) Compile(meta *types.Metadata) error {
	if err := n.compileChildren(meta); err != nil {
		return err
	}
	if err := checkType(n.op.name, "x", 0, n.a, n.op.accept...); err != nil {
		return err
	}
	if err := checkType(n.op.name, "y", 1, n.b, n.op.accept...); err != nil {
		return err
	}
	if n.op.sameType && n.a.Type() != n.b.Type() {
		return typeMismatch(types.ErrInvalidParameterType, n.op.name, "y", 1, []types.Type{n.a.Type()}, n.b.Type())
	}
	return nil
}

func (n *Binary) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	preface, in, err := n.emitChildren(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	return ShaderSource{Preface: preface, Inline: fmt.Sprintf(n.op.glsl, in["x"], in["y"])}, nil
}

type unaryOp struct {
	name string
	eval func(float64) float64
	glsl string
}

var (
	opAbs    = &unaryOp{"abs", math.Abs, "abs(%s)"}
	opFloor  = &unaryOp{"floor", math.Floor, "floor(%s)"}
	opSqrt   = &unaryOp{"sqrt", math.Sqrt, "sqrt(%s)"}
	opNegate = &unaryOp{"negate", func(x float64) float64 { return -x }, "(-(%s))"}
)

// Unary is a unary numeric function.
type Unary struct {
	composite
	op *unaryOp
	x  Node
}

func newUnary(op *unaryOp, x any) (*Unary, error) {
	n, err := castArg(op.name, "x", 0, x)
	if err != nil {
		return nil, err
	}
	if err := checkLooseType(op.name, "x", 0, n, types.TypeNumber); err != nil {
		return nil, err
	}
	return &Unary{composite: composite{children: []Child{{"x", n}}}, op: op, x: n}, nil
}

// NewAbs creates abs(x).
func NewAbs(x any) (*Unary, error) { return newUnary(opAbs, x) }

// NewFloor creates floor(x).
func NewFloor(x any) (*Unary, error) { return newUnary(opFloor, x) }

// NewSqrt creates sqrt(x).
func NewSqrt(x any) (*Unary, error) { return newUnary(opSqrt, x) }

// NewNegate creates -x.
func NewNegate(x any) (*Unary, error) { return newUnary(opNegate, x) }

func (n *Unary) Name() string     { return n.op.name }
func (n *Unary) Type() types.Type { return types.TypeNumber }

func (n *Unary) Eval(f types.Feature) (any, error) {
	x, err := evalFloat(n.x, f)
	if err != nil {
		return nil, err
	}
	return n.op.eval(x), nil
}

func (n *Unary) Compile(meta *types.Metadata) error {
	if err := n.compileChildren(meta); err != nil {
		return err
	}
	return checkType(n.op.name, "x", 0, n.x, types.TypeNumber)
}

func (n *Unary) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	preface, in, err := n.emitChildren(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	return ShaderSource{Preface: preface, Inline: fmt.Sprintf(n.op.glsl, in["x"])}, nil
}
