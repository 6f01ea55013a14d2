package parser

import (
	"log/slog"

	"github.com/sandrolain/goviz/pkg/cache"
	"github.com/sandrolain/goviz/pkg/expressions"
	"github.com/sandrolain/goviz/pkg/functions"
	"github.com/sandrolain/goviz/pkg/palettes"
	"github.com/sandrolain/goviz/pkg/viz"
)

// DefaultMaxDepth is the default expression nesting limit.
const DefaultMaxDepth = 100

// CompileOption configures parsing.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// Filename is reported in source ranges.
	Filename string
	// MaxDepth limits expression nesting.
	MaxDepth int
	// Functions resolves function calls. Defaults to functions.Builtins().
	Functions *functions.Registry
	// Palettes resolves bare identifiers. Defaults to palettes.Default().
	Palettes *palettes.Registry
	// Clock drives torque, transition and now.
	Clock expressions.Clock
	// Cache is handed to parsed vizs for program sharing.
	Cache *cache.Cache
	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// WithFilename sets the file name used in error ranges.
func WithFilename(name string) CompileOption {
	return func(opts *CompileOptions) {
		opts.Filename = name
	}
}

// WithMaxDepth sets the maximum nesting depth.
func WithMaxDepth(depth int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxDepth = depth
	}
}

// WithFunctions sets the function table.
func WithFunctions(r *functions.Registry) CompileOption {
	return func(opts *CompileOptions) {
		opts.Functions = r
	}
}

// WithPalettes sets the palette registry.
func WithPalettes(r *palettes.Registry) CompileOption {
	return func(opts *CompileOptions) {
		opts.Palettes = r
	}
}

// WithClock sets the clock of animated expressions.
func WithClock(clock expressions.Clock) CompileOption {
	return func(opts *CompileOptions) {
		opts.Clock = clock
	}
}

// WithCache sets the program cache of parsed vizs.
func WithCache(c *cache.Cache) CompileOption {
	return func(opts *CompileOptions) {
		opts.Cache = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) CompileOption {
	return func(opts *CompileOptions) {
		opts.Logger = logger
	}
}

func (o CompileOptions) vizOptions() []viz.Option {
	return []viz.Option{viz.WithLogger(o.Logger), viz.WithCache(o.Cache), viz.WithClock(o.Clock)}
}
