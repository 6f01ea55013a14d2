package viz

import (
	"log/slog"

	"github.com/sandrolain/goviz/pkg/cache"
	"github.com/sandrolain/goviz/pkg/expressions"
)

// Options configures a Viz.
type Options struct {
	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
	// Cache shares linked programs between vizs. Nil links every program.
	Cache *cache.Cache
	// Clock drives the default transitions of BlendFrom.
	Clock expressions.Clock
}

// Option configures Options.
type Option func(*Options)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithCache sets the program cache.
func WithCache(c *cache.Cache) Option {
	return func(opts *Options) {
		opts.Cache = c
	}
}

// WithClock sets the clock used for blending.
func WithClock(clock expressions.Clock) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

func newOptions(opts []Option) Options {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return options
}
