package expressions

import (
	"fmt"
	"strings"

	"github.com/sandrolain/goviz/pkg/types"
)

// Classifier is implemented by category-valued nodes whose value range is
// known after Compile. Both methods report ok=false before Compile.
type Classifier interface {
	Node
	NumCategories() (int, bool)
	OthersBucket() bool
}

// Buckets classifies its input by a list of breakpoints.
//
// A number falls in the first bucket i with value < breakpoints[i]; a
// category in the first bucket whose breakpoint equals it. Anything else
// falls in the last bucket, len(breakpoints).
type Buckets struct {
	composite
	input       Node
	breakpoints []Node
	compiled    bool
	others      bool
}

// NewBuckets creates buckets(input, breakpoints).
func NewBuckets(input any, breakpoints ...any) (*Buckets, error) {
	in, err := castArg("buckets", "input", 0, input)
	if err != nil {
		return nil, err
	}
	if err := checkLooseType("buckets", "input", 0, in, types.TypeNumber, types.TypeCategory); err != nil {
		return nil, err
	}
	args, err := castAll("buckets", "breakpoints", 1, breakpoints)
	if err != nil {
		return nil, err
	}
	looseType := in.Type()
	children := []Child{{"input", in}}
	for i, arg := range args {
		if err := checkLooseType("buckets", "breakpoints", i+1, arg, types.TypeNumber, types.TypeCategory); err != nil {
			return nil, err
		}
		if arg.Type() != types.TypeUnknown {
			if looseType != types.TypeUnknown && looseType != arg.Type() {
				return nil, typeMismatch(types.ErrInvalidParameter, "buckets", "breakpoints", i+1, []types.Type{looseType}, arg.Type())
			}
			looseType = arg.Type()
		}
		children = append(children, Child{Name: "arg" + itoa(i), Node: arg})
	}
	return &Buckets{composite: composite{children: children}, input: in, breakpoints: args}, nil
}

func (b *Buckets) Name() string     { return "buckets" }
func (b *Buckets) Type() types.Type { return types.TypeCategory }

// NumCategories is len(breakpoints)+1.
func (b *Buckets) NumCategories() (int, bool) {
	return len(b.breakpoints) + 1, b.compiled
}

// OthersBucket reports whether the last bucket collects unmatched
// categories.
func (b *Buckets) OthersBucket() bool { return b.others }

func (b *Buckets) Compile(meta *types.Metadata) error {
	b.compiled = false
	if err := b.compileChildren(meta); err != nil {
		return err
	}
	if err := checkType("buckets", "input", 0, b.input, types.TypeNumber, types.TypeCategory); err != nil {
		return err
	}
	for i, arg := range b.breakpoints {
		if err := checkType("buckets", "breakpoints", i+1, arg, b.input.Type()); err != nil {
			return err
		}
	}
	b.others = b.input.Type() == types.TypeCategory
	b.compiled = true
	return nil
}

func (b *Buckets) Eval(f types.Feature) (any, error) {
	if !b.compiled {
		return nil, errNotCompiled(b.Name())
	}
	v, err := evalFloat(b.input, f)
	if err != nil {
		return nil, err
	}
	for i, arg := range b.breakpoints {
		bp, err := evalFloat(arg, f)
		if err != nil {
			return nil, err
		}
		if (b.others && v == bp) || (!b.others && v < bp) {
			return float64(i), nil
		}
	}
	return float64(len(b.breakpoints)), nil
}

func (b *Buckets) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	if !b.compiled {
		return ShaderSource{}, errNotCompiled(b.Name())
	}
	preface, in, err := b.emitChildren(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	fn := "buckets" + itoa(ids.Next())
	cmp := "<"
	if b.others {
		cmp = "=="
	}
	var body strings.Builder
	fmt.Fprintf(&body, "float %s(float x){\n", fn)
	for i := range b.breakpoints {
		if i == 0 {
			body.WriteString("    if")
		} else {
			body.WriteString(" else if")
		}
		fmt.Fprintf(&body, " (x%s(%s)){\n        return %s;\n    }", cmp, in["arg"+itoa(i)], glslFloat(float64(i)))
	}
	if len(b.breakpoints) > 0 {
		body.WriteString("\n")
	}
	fmt.Fprintf(&body, "    return %s;\n}\n", glslFloat(float64(len(b.breakpoints))))
	return ShaderSource{
		Preface: preface + body.String(),
		Inline:  fmt.Sprintf("%s(%s)", fn, in["input"]),
	}, nil
}
