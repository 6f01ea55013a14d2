package expressions

import (
	"fmt"
	"strings"

	"github.com/sandrolain/goviz/pkg/types"
)

// Belongs is in(value, categories) or nin(value, categories). It evaluates
// to 1 when the membership holds and 0 otherwise.
type Belongs struct {
	composite
	negate     bool
	value      Node
	categories []Node
}

// NewIn creates in(value, categories).
func NewIn(value any, categories ...any) (*Belongs, error) {
	return newBelongs("in", false, value, categories)
}

// NewNin creates nin(value, categories).
func NewNin(value any, categories ...any) (*Belongs, error) {
	return newBelongs("nin", true, value, categories)
}

func newBelongs(fn string, negate bool, value any, categories []any) (*Belongs, error) {
	v, err := castArg(fn, "value", 0, value)
	if err != nil {
		return nil, err
	}
	if err := checkLooseType(fn, "value", 0, v, types.TypeCategory); err != nil {
		return nil, err
	}
	cats, err := castAll(fn, "categories", 1, categories)
	if err != nil {
		return nil, err
	}
	children := []Child{{"value", v}}
	for i, c := range cats {
		if err := checkLooseType(fn, "categories", i+1, c, types.TypeCategory); err != nil {
			return nil, err
		}
		children = append(children, Child{Name: "arg" + itoa(i), Node: c})
	}
	return &Belongs{composite: composite{children: children}, negate: negate, value: v, categories: cats}, nil
}

func (b *Belongs) Name() string {
	if b.negate {
		return "nin"
	}
	return "in"
}

func (b *Belongs) Type() types.Type { return types.TypeNumber }

func (b *Belongs) Eval(f types.Feature) (any, error) {
	v, err := evalFloat(b.value, f)
	if err != nil {
		return nil, err
	}
	found := false
	for _, c := range b.categories {
		cv, err := evalFloat(c, f)
		if err != nil {
			return nil, err
		}
		if cv == v {
			found = true
			break
		}
	}
	return boolFloat(found != b.negate), nil
}

func (b *Belongs) Compile(meta *types.Metadata) error {
	if err := b.compileChildren(meta); err != nil {
		return err
	}
	if err := checkType(b.Name(), "value", 0, b.value, types.TypeCategory); err != nil {
		return err
	}
	for i, c := range b.categories {
		if err := checkType(b.Name(), "categories", i+1, c, types.TypeCategory); err != nil {
			return err
		}
	}
	return nil
}

func (b *Belongs) EmitShaderSource(ids *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	preface, in, err := b.emitChildren(ids, prop)
	if err != nil {
		return ShaderSource{}, err
	}
	if len(b.categories) == 0 {
		return ShaderSource{Preface: preface, Inline: glslFloat(boolFloat(b.negate))}, nil
	}
	cmp, join := "==", " || "
	if b.negate {
		cmp, join = "!=", " && "
	}
	terms := make([]string, len(b.categories))
	for i := range b.categories {
		terms[i] = fmt.Sprintf("(%s %s %s)", in["value"], cmp, in["arg"+itoa(i)])
	}
	return ShaderSource{
		Preface: preface,
		Inline:  fmt.Sprintf("((%s) ? 1.0 : 0.0)", strings.Join(terms, join)),
	}, nil
}
