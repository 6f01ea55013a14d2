// Package goviz compiles viz style expressions into per-feature style
// programs for map rendering.
//
// A viz maps each style property (color, width, strokeColor, strokeWidth,
// filter, order) to an expression over dataset properties. Compiling a viz
// against dataset metadata type checks every expression and generates one
// fragment program per shaded style; a layer then draws those programs into
// style textures, one texel per feature.
//
// # Quick Start
//
//	// Parse once
//	v, err := goviz.ParseViz(`color = ramp(prop.kind, BOLD)`)
//
//	// Compile against a dataset and a rendering context
//	v, err := goviz.CompileViz(gl, src, meta)
//	c, _ := v.Shader(types.StyleColor)
//
//	// Evaluate a style for one feature on the CPU
//	width, err := v.Number(types.StyleWidth, types.Feature{"speed": 42})
//
// # More Information
//
//   - Parser: github.com/sandrolain/goviz/pkg/parser
//   - Expressions: github.com/sandrolain/goviz/pkg/expressions
//   - Viz: github.com/sandrolain/goviz/pkg/viz
//   - Layers: github.com/sandrolain/goviz/pkg/layer
//   - Sources: github.com/sandrolain/goviz/pkg/source
package goviz

import (
	"fmt"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/parser"
	"github.com/sandrolain/goviz/pkg/types"
	"github.com/sandrolain/goviz/pkg/viz"
)

// Version returns the current version of goviz.
func Version() string {
	return "0.1.0-dev"
}

// ParseViz parses viz source.
//
// Example:
//
//	v, err := goviz.ParseViz("width = prop.size\nfilter = prop.size > 10")
func ParseViz(src string, opts ...parser.CompileOption) (*viz.Viz, error) {
	return parser.ParseViz(src, opts...)
}

// MustParseViz is like ParseViz but panics on error.
func MustParseViz(src string, opts ...parser.CompileOption) *viz.Viz {
	return parser.MustParseViz(src, opts...)
}

// CompileViz parses src and compiles its style programs on gl against meta.
func CompileViz(gl gpu.Context, src string, meta *types.Metadata, opts ...parser.CompileOption) (*viz.Viz, error) {
	if gl == nil {
		return nil, types.NewError(types.ErrInvalidParameter, "rendering context is required")
	}
	v, err := parser.ParseViz(src, opts...)
	if err != nil {
		return nil, err
	}
	if err := v.CompileShaders(gl, meta); err != nil {
		return nil, fmt.Errorf("compiling viz: %w", err)
	}
	return v, nil
}
