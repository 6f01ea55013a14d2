package parser

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/sandrolain/goviz/pkg/expressions"
	"github.com/sandrolain/goviz/pkg/functions"
	"github.com/sandrolain/goviz/pkg/palettes"
	"github.com/sandrolain/goviz/pkg/types"
)

// PropertyRoot is the traversal root of property references: prop.name.
const PropertyRoot = "prop"

type parser struct {
	opts CompileOptions
	env  functions.Env
}

func newParser(opts []CompileOption) *parser {
	options := CompileOptions{MaxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Functions == nil {
		options.Functions = functions.Builtins()
	}
	if options.Palettes == nil {
		options.Palettes = palettes.Default()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &parser{opts: options, env: functions.Env{Clock: options.Clock}}
}

func syntaxErrorf(rng hcl.Range, format string, args ...any) *types.Error {
	return types.Errorf(types.ErrSyntax, "%s: %s", rng, fmt.Sprintf(format, args...))
}

// wrapAt prefixes err with a source range and keeps its code.
func wrapAt(rng hcl.Range, err error) error {
	return fmt.Errorf("%s: %w", rng, err)
}

// convert turns an HCL expression into a node or a raw value accepted by
// expressions.Cast: float64, string or []any.
func (p *parser) convert(expr hclsyntax.Expression, depth int) (any, error) {
	if p.opts.MaxDepth > 0 && depth > p.opts.MaxDepth {
		return nil, syntaxErrorf(expr.Range(), "expression nesting exceeds %d levels", p.opts.MaxDepth)
	}
	switch e := expr.(type) {
	case *hclsyntax.LiteralValueExpr:
		return literal(e.Val, e.SrcRange)

	case *hclsyntax.TemplateExpr:
		if !e.IsStringLiteral() {
			return nil, syntaxErrorf(e.SrcRange, "string templates are not supported")
		}
		v, diags := e.Value(nil)
		if diags.HasErrors() {
			return nil, diagError(diags)
		}
		return literal(v, e.SrcRange)

	case *hclsyntax.ScopeTraversalExpr:
		return p.traversal(e.Traversal, e.SrcRange)

	case *hclsyntax.FunctionCallExpr:
		def, ok := p.opts.Functions.Lookup(e.Name)
		if !ok {
			return nil, types.Errorf(types.ErrUnknownFunction, "%s: unknown function %q", e.NameRange, e.Name)
		}
		if e.ExpandFinal {
			return nil, syntaxErrorf(e.Range(), "argument expansion is not supported")
		}
		args := make([]any, len(e.Args))
		for i, a := range e.Args {
			v, err := p.convert(a, depth+1)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		n, err := def.Call(p.env, args...)
		if err != nil {
			return nil, wrapAt(e.Range(), err)
		}
		return n, nil

	case *hclsyntax.TupleConsExpr:
		list := make([]any, len(e.Exprs))
		for i, x := range e.Exprs {
			v, err := p.convert(x, depth+1)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil

	case *hclsyntax.BinaryOpExpr:
		build, ok := binaryOps[e.Op]
		if !ok {
			return nil, syntaxErrorf(e.SrcRange, "unsupported operator")
		}
		lhs, err := p.convert(e.LHS, depth+1)
		if err != nil {
			return nil, err
		}
		rhs, err := p.convert(e.RHS, depth+1)
		if err != nil {
			return nil, err
		}
		n, err := build(lhs, rhs)
		if err != nil {
			return nil, wrapAt(e.SrcRange, err)
		}
		return n, nil

	case *hclsyntax.UnaryOpExpr:
		if e.Op != hclsyntax.OpNegate {
			return nil, syntaxErrorf(e.SrcRange, "unsupported operator")
		}
		v, err := p.convert(e.Val, depth+1)
		if err != nil {
			return nil, err
		}
		if x, ok := v.(float64); ok {
			return -x, nil
		}
		n, err := expressions.NewNegate(v)
		if err != nil {
			return nil, wrapAt(e.SrcRange, err)
		}
		return n, nil

	case *hclsyntax.ParenthesesExpr:
		return p.convert(e.Expression, depth+1)
	}
	return nil, syntaxErrorf(expr.Range(), "unsupported expression")
}

var binaryOps = map[*hclsyntax.Operation]func(x, y any) (*expressions.Binary, error){
	hclsyntax.OpAdd:                expressions.NewAdd,
	hclsyntax.OpSubtract:           expressions.NewSub,
	hclsyntax.OpMultiply:           expressions.NewMul,
	hclsyntax.OpDivide:             expressions.NewDiv,
	hclsyntax.OpModulo:             expressions.NewMod,
	hclsyntax.OpGreaterThan:        expressions.NewGreaterThan,
	hclsyntax.OpGreaterThanOrEqual: expressions.NewGreaterThanOrEqual,
	hclsyntax.OpLessThan:           expressions.NewLessThan,
	hclsyntax.OpLessThanOrEqual:    expressions.NewLessThanOrEqual,
	hclsyntax.OpEqual:              expressions.NewEquals,
	hclsyntax.OpNotEqual:           expressions.NewNotEquals,
}

func literal(v cty.Value, rng hcl.Range) (any, error) {
	if v.IsNull() {
		return nil, syntaxErrorf(rng, "null is not a value")
	}
	switch v.Type() {
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		if v.True() {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return nil, syntaxErrorf(rng, "unsupported literal of type %s", v.Type().FriendlyName())
}

// traversal resolves prop.name, prop["name"] and bare identifiers.
func (p *parser) traversal(t hcl.Traversal, rng hcl.Range) (any, error) {
	root := t.RootName()
	if root == PropertyRoot {
		if len(t) != 2 {
			return nil, syntaxErrorf(rng, "expected %s.<name>", PropertyRoot)
		}
		var name string
		switch step := t[1].(type) {
		case hcl.TraverseAttr:
			name = step.Name
		case hcl.TraverseIndex:
			if step.Key.Type() != cty.String || step.Key.IsNull() {
				return nil, syntaxErrorf(rng, "property names are strings")
			}
			name = step.Key.AsString()
		default:
			return nil, syntaxErrorf(rng, "expected %s.<name>", PropertyRoot)
		}
		n, err := expressions.NewProperty(name)
		if err != nil {
			return nil, wrapAt(rng, err)
		}
		return n, nil
	}
	if len(t) != 1 {
		return nil, syntaxErrorf(rng, "unknown reference %q", root)
	}
	if pal, ok := p.opts.Palettes.Lookup(root); ok {
		return pal, nil
	}
	if expressions.IsColorName(root) {
		n, err := expressions.NewNamedColor(root)
		if err != nil {
			return nil, wrapAt(rng, err)
		}
		return n, nil
	}
	return nil, syntaxErrorf(rng, "unknown identifier %q", root)
}
