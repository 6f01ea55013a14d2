// Package parser implements the viz text front end.
//
// Viz source uses HCL attribute syntax: every attribute is a style property
// and its value is an expression.
//
//	color  = ramp(buckets(prop.speed, [30, 80, 120]), PRISM)
//	width  = 5
//	filter = torque(prop.day, 40, fade(0.1, 0.3))
//
// Function calls map to the constructors of a functions.Registry. prop.name
// and property("name") read a dataset property. Bare identifiers name a
// palette or, failing that, a CSS color. Strings go through the implicit cast
// of the expressions package ("#F00" is a hex color, anything else a
// category), tuples are lists and the arithmetic and comparison operators map
// to the matching nodes.
//
// # Example
//
//	v, err := parser.ParseViz(`color = ramp(prop.kind, BOLD)`)
//	if err != nil {
//	    log.Fatal(err)
//	}
package parser

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/sandrolain/goviz/pkg/expressions"
	"github.com/sandrolain/goviz/pkg/types"
	"github.com/sandrolain/goviz/pkg/viz"
)

// ParseViz parses viz source into a Viz. Styles missing from the source get
// their defaults.
func ParseViz(src string, opts ...CompileOption) (*viz.Viz, error) {
	p := newParser(opts)
	file, diags := hclsyntax.ParseConfig([]byte(src), p.opts.Filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, types.NewError(types.ErrSyntax, "unexpected body type")
	}
	if len(body.Blocks) > 0 {
		b := body.Blocks[0]
		return nil, syntaxErrorf(b.DefRange(), "blocks are not allowed, found %q", b.Type)
	}

	names := make([]string, 0, len(body.Attributes))
	for name := range body.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	styles := make(map[string]any, len(names))
	for _, name := range names {
		attr := body.Attributes[name]
		if _, ok := types.ParseStyleProperty(name); !ok {
			return nil, types.Errorf(types.ErrUnknownStyle, "%s: unknown style property %q", attr.NameRange, name)
		}
		v, err := p.convert(attr.Expr, 0)
		if err != nil {
			return nil, err
		}
		styles[name] = v
	}
	p.opts.Logger.Debug("parsed viz", "file", p.opts.Filename, "styles", len(styles))
	return viz.New(styles, p.opts.vizOptions()...)
}

// MustParseViz is like ParseViz but panics on error.
func MustParseViz(src string, opts ...CompileOption) *viz.Viz {
	v, err := ParseViz(src, opts...)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseExpression parses a single viz expression.
func ParseExpression(src string, opts ...CompileOption) (expressions.Node, error) {
	p := newParser(opts)
	expr, diags := hclsyntax.ParseExpression([]byte(src), p.opts.Filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}
	v, err := p.convert(expr, 0)
	if err != nil {
		return nil, err
	}
	n, err := expressions.Cast(v)
	if err != nil {
		return nil, wrapAt(expr.Range(), err)
	}
	return n, nil
}

func diagError(diags hcl.Diagnostics) error {
	return types.NewError(types.ErrSyntax, diags.Error()).WithCause(diags)
}
