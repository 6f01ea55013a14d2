// Package functions provides the table of viz functions callable from viz
// source text.
//
// Every entry maps a function name to an expression constructor. Users can
// register their own entries, typically shorthands built from the builtins,
// and pass the registry to the parser.
//
// # Example
//
//	reg := functions.Builtins()
//	reg.Register(functions.Def{
//	    Name: "double", MinArgs: 1, MaxArgs: 1,
//	    New: func(_ functions.Env, args ...any) (expressions.Node, error) {
//	        return expressions.NewMul(args[0], 2)
//	    },
//	})
package functions

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sandrolain/goviz/pkg/expressions"
	"github.com/sandrolain/goviz/pkg/types"
)

// Env carries what constructors need beyond their arguments.
type Env struct {
	Clock expressions.Clock
}

// Constructor builds a node from call arguments. Arguments are nodes or raw
// values accepted by expressions.Cast.
type Constructor func(env Env, args ...any) (expressions.Node, error)

// Def describes a viz function.
type Def struct {
	// Name is the function name as written in viz source.
	Name string
	// MinArgs and MaxArgs bound the argument count. MaxArgs < 0 means
	// unlimited.
	MinArgs int
	MaxArgs int
	New     Constructor
}

// Call checks the argument count and runs the constructor.
func (d Def) Call(env Env, args ...any) (expressions.Node, error) {
	if len(args) < d.MinArgs || (d.MaxArgs >= 0 && len(args) > d.MaxArgs) {
		return nil, types.Errorf(types.ErrArgumentCount, "%s, got %d", d.arity(), len(args)).WithExpr(d.Name)
	}
	return d.New(env, args...)
}

func (d Def) arity() string {
	switch {
	case d.MaxArgs < 0:
		return "expected at least " + plural(d.MinArgs)
	case d.MinArgs == d.MaxArgs:
		return "expected " + plural(d.MinArgs)
	default:
		return "expected " + strconv.Itoa(d.MinArgs) + " to " + plural(d.MaxArgs)
	}
}

func plural(n int) string {
	if n == 1 {
		return "1 parameter"
	}
	return strconv.Itoa(n) + " parameters"
}

// Registry is a concurrency safe function table.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Def
}

// NewRegistry returns a registry holding defs.
func NewRegistry(defs ...Def) *Registry {
	r := &Registry{defs: make(map[string]Def, len(defs))}
	r.Register(defs...)
	return r
}

// Register adds or replaces entries.
func (r *Registry) Register(defs ...Def) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range defs {
		r.defs[d.Name] = d
	}
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the sorted function names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins returns a fresh registry with every builtin viz function.
func Builtins() *Registry {
	return NewRegistry(builtins()...)
}

func binary(name string, fn func(x, y any) (*expressions.Binary, error)) Def {
	return Def{Name: name, MinArgs: 2, MaxArgs: 2, New: func(_ Env, args ...any) (expressions.Node, error) {
		return fn(args[0], args[1])
	}}
}

func unary(name string, fn func(x any) (*expressions.Unary, error)) Def {
	return Def{Name: name, MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
		return fn(args[0])
	}}
}

func alias(name string, d Def) Def {
	d.Name = name
	return d
}

// spread expands a single list argument into variadic arguments, so both
// in(x, ["a", "b"]) and in(x, "a", "b") work.
func spread(args []any) []any {
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			return list
		}
	}
	return args
}

func builtins() []Def {
	gt := binary("greaterThan", expressions.NewGreaterThan)
	gte := binary("greaterThanOrEqualTo", expressions.NewGreaterThanOrEqual)
	lt := binary("lessThan", expressions.NewLessThan)
	lte := binary("lessThanOrEqualTo", expressions.NewLessThanOrEqual)
	eq := binary("equals", expressions.NewEquals)
	neq := binary("notEquals", expressions.NewNotEquals)

	return []Def{
		binary("add", expressions.NewAdd),
		binary("sub", expressions.NewSub),
		binary("mul", expressions.NewMul),
		binary("div", expressions.NewDiv),
		binary("mod", expressions.NewMod),
		binary("pow", expressions.NewPow),
		gt, alias("gt", gt),
		gte, alias("gte", gte),
		lt, alias("lt", lt),
		lte, alias("lte", lte),
		eq, alias("eq", eq),
		neq, alias("neq", neq),
		unary("abs", expressions.NewAbs),
		unary("floor", expressions.NewFloor),
		unary("sqrt", expressions.NewSqrt),
		unary("negate", expressions.NewNegate),

		{Name: "rgb", MinArgs: 3, MaxArgs: 3, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewRGB(args[0], args[1], args[2])
		}},
		{Name: "rgba", MinArgs: 4, MaxArgs: 4, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewRGBA(args[0], args[1], args[2], args[3])
		}},
		{Name: "hex", MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
			s, err := stringArg("hex", "hex", args[0])
			if err != nil {
				return nil, err
			}
			return expressions.NewHex(s)
		}},
		{Name: "namedColor", MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
			s, err := stringArg("namedColor", "name", args[0])
			if err != nil {
				return nil, err
			}
			return expressions.NewNamedColor(s)
		}},
		{Name: "date", MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
			s, err := stringArg("date", "date", args[0])
			if err != nil {
				return nil, err
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, types.Errorf(types.ErrInvalidParameter, "invalid first parameter 'date'\n\t%v", err).WithExpr("date")
			}
			return expressions.NewTime(t), nil
		}},
		{Name: "property", MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
			s, err := stringArg("property", "name", args[0])
			if err != nil {
				return nil, err
			}
			return expressions.NewProperty(s)
		}},
		{Name: "globalMin", MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewGlobalMin(args[0])
		}},
		{Name: "globalMax", MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewGlobalMax(args[0])
		}},
		{Name: "globalAvg", MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewGlobalAvg(args[0])
		}},
		{Name: "linear", MinArgs: 1, MaxArgs: 3, New: func(_ Env, args ...any) (expressions.Node, error) {
			switch len(args) {
			case 1:
				p, ok := args[0].(*expressions.Property)
				if !ok {
					return nil, types.Errorf(types.ErrInvalidParameter, "invalid first parameter 'input'\n\tlinear() with one parameter expects a property reference").WithExpr("linear")
				}
				return expressions.NewLinearProperty(p)
			case 3:
				return expressions.NewLinear(args[0], args[1], args[2])
			}
			return nil, types.Errorf(types.ErrArgumentCount, "expected 1 or 3 parameters, got %d", len(args)).WithExpr("linear")
		}},
		{Name: "in", MinArgs: 1, MaxArgs: -1, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewIn(args[0], spread(args[1:])...)
		}},
		{Name: "nin", MinArgs: 1, MaxArgs: -1, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewNin(args[0], spread(args[1:])...)
		}},
		{Name: "buckets", MinArgs: 2, MaxArgs: -1, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewBuckets(args[0], spread(args[1:])...)
		}},
		{Name: "top", MinArgs: 2, MaxArgs: 2, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewTop(args[0], args[1])
		}},
		{Name: "ramp", MinArgs: 2, MaxArgs: 2, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewRamp(args[0], args[1])
		}},
		{Name: "fade", MinArgs: 0, MaxArgs: 2, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewFade(args...)
		}},
		{Name: "torque", MinArgs: 1, MaxArgs: 3, New: func(env Env, args ...any) (expressions.Node, error) {
			duration := expressions.DefaultTorqueDuration
			if len(args) > 1 {
				d, err := numberArg("torque", "duration", 1, args[1])
				if err != nil {
					return nil, err
				}
				duration = d
			}
			var fade *expressions.Fade
			if len(args) > 2 {
				f, ok := args[2].(*expressions.Fade)
				if !ok {
					return nil, types.Errorf(types.ErrInvalidParameter, "invalid third parameter 'fade'\n\texpected type was fade").WithExpr("torque")
				}
				fade = f
			}
			return expressions.NewTorque(args[0], duration, fade, env.Clock)
		}},
		{Name: "transition", MinArgs: 1, MaxArgs: 1, New: func(env Env, args ...any) (expressions.Node, error) {
			d, err := numberArg("transition", "duration", 0, args[0])
			if err != nil {
				return nil, err
			}
			return expressions.NewTransition(d, env.Clock)
		}},
		{Name: "blend", MinArgs: 3, MaxArgs: 3, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewBlend(args[0], args[1], args[2])
		}},
		{Name: "now", MinArgs: 0, MaxArgs: 0, New: func(env Env, _ ...any) (expressions.Node, error) {
			return expressions.NewNow(env.Clock), nil
		}},
		{Name: "width", MinArgs: 0, MaxArgs: 0, New: func(Env, ...any) (expressions.Node, error) {
			return expressions.NewWidth(), nil
		}},
		{Name: "asc", MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewAsc(args[0])
		}},
		{Name: "desc", MinArgs: 1, MaxArgs: 1, New: func(_ Env, args ...any) (expressions.Node, error) {
			return expressions.NewDesc(args[0])
		}},
		{Name: "noOrder", MinArgs: 0, MaxArgs: 0, New: func(Env, ...any) (expressions.Node, error) {
			return expressions.NewNoOrder(), nil
		}},
	}
}

func stringArg(fn, param string, v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case *expressions.Category:
		return x.Value(), nil
	}
	return "", types.Errorf(types.ErrInvalidParameter, "invalid first parameter '%s'\n\texpected a string literal", param).WithExpr(fn)
}

var ordinals = []string{"first", "second", "third"}

func numberArg(fn, param string, idx int, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case *expressions.Number:
		return x.Value(), nil
	}
	return 0, types.Errorf(types.ErrInvalidParameter, "invalid %s parameter '%s'\n\texpected a number literal", ordinals[idx], param).WithExpr(fn)
}
