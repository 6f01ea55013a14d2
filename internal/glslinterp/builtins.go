package glslinterp

import (
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

func numParams(names ...string) []function.Parameter {
	params := make([]function.Parameter, len(names))
	for i, n := range names {
		params[i] = function.Parameter{Name: n, Type: cty.Number}
	}
	return params
}

// scalar wraps a float function of fixed arity.
func scalar(fn func(xs []float64) float64, names ...string) function.Function {
	return function.New(&function.Spec{
		Params: numParams(names...),
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			xs := make([]float64, len(args))
			for i, a := range args {
				xs[i] = toFloat(a)
			}
			return number(fn(xs))
		},
	})
}

func vecType(n int) cty.Type {
	elems := make([]cty.Type, n)
	for i := range elems {
		elems[i] = cty.Number
	}
	return cty.Tuple(elems)
}

func vec(names ...string) function.Function {
	return function.New(&function.Spec{
		Params: numParams(names...),
		Type:   function.StaticReturnType(vecType(len(names))),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.TupleVal(args), nil
		},
	})
}

// componentwise applies fn to numbers or, element by element, to tuples.
func componentwise(a, b cty.Value, m float64, fn func(a, b, m float64) float64) (cty.Value, error) {
	if a.Type() == cty.Number && b.Type() == cty.Number {
		return number(fn(toFloat(a), toFloat(b), m))
	}
	if !a.Type().IsTupleType() || !a.Type().Equals(b.Type()) {
		return cty.NilVal, fmt.Errorf("mismatched operands %s and %s", a.Type().FriendlyName(), b.Type().FriendlyName())
	}
	as, bs := a.AsValueSlice(), b.AsValueSlice()
	out := make([]cty.Value, len(as))
	for i := range as {
		v, err := number(fn(toFloat(as[i]), toFloat(bs[i]), m))
		if err != nil {
			return cty.NilVal, err
		}
		out[i] = v
	}
	return cty.TupleVal(out), nil
}

var mixFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "a", Type: cty.DynamicPseudoType},
		{Name: "b", Type: cty.DynamicPseudoType},
		{Name: "m", Type: cty.Number},
	},
	Type: func(args []cty.Value) (cty.Type, error) {
		return args[0].Type(), nil
	},
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return componentwise(args[0], args[1], toFloat(args[2]), func(a, b, m float64) float64 {
			return a*(1-m) + b*m
		})
	},
})

var texelType = cty.Object(map[string]cty.Type{
	"r":    cty.Number,
	"g":    cty.Number,
	"b":    cty.Number,
	"a":    cty.Number,
	"rgba": vecType(4),
})

func (in *Interpreter) texture2D() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "sampler", Type: cty.String},
			{Name: "coord", Type: vecType(2)},
		},
		Type: function.StaticReturnType(texelType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			tex, err := in.lookupTexture(args[0].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			coord := args[1].AsValueSlice()
			c := sample(tex, toFloat(coord[0]), toFloat(coord[1]))
			vals := make([]cty.Value, 4)
			for i := range c {
				vals[i] = cty.NumberFloatVal(c[i])
			}
			return cty.ObjectVal(map[string]cty.Value{
				"r":    vals[0],
				"g":    vals[1],
				"b":    vals[2],
				"a":    vals[3],
				"rgba": cty.TupleVal(vals),
			}), nil
		},
	})
}

func builtins(in *Interpreter) map[string]function.Function {
	return map[string]function.Function{
		"abs":   scalar(func(x []float64) float64 { return math.Abs(x[0]) }, "x"),
		"floor": scalar(func(x []float64) float64 { return math.Floor(x[0]) }, "x"),
		"sqrt":  scalar(func(x []float64) float64 { return math.Sqrt(x[0]) }, "x"),
		"pow":   scalar(func(x []float64) float64 { return math.Pow(x[0], x[1]) }, "x", "y"),
		"mod": scalar(func(x []float64) float64 {
			return x[0] - x[1]*math.Floor(x[0]/x[1])
		}, "x", "y"),
		"min": scalar(func(x []float64) float64 { return math.Min(x[0], x[1]) }, "x", "y"),
		"max": scalar(func(x []float64) float64 { return math.Max(x[0], x[1]) }, "x", "y"),
		"clamp": scalar(func(x []float64) float64 {
			return math.Min(math.Max(x[0], x[1]), x[2])
		}, "x", "lo", "hi"),
		"mix":       mixFunc,
		"vec2":      vec("x", "y"),
		"vec4":      vec("x", "y", "z", "w"),
		"texture2D": in.texture2D(),
	}
}
