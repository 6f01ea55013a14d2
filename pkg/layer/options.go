package layer

import (
	"log/slog"

	"github.com/sandrolain/goviz/pkg/expressions"
)

// DefaultRTTWidth is the default width of the dataframe style textures.
const DefaultRTTWidth = 1024

// Options configures a Layer.
type Options struct {
	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
	// RTTWidth is the width of the style textures of every dataframe.
	RTTWidth int
	// Clock drives blends started by BlendToViz.
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

// WithRTTWidth sets the style texture width.
func WithRTTWidth(width int) Option {
	return func(opts *Options) {
		opts.RTTWidth = width
	}
}

// WithClock sets the clock used by blends.
func WithClock(clock expressions.Clock) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

func newOptions(opts []Option) Options {
	options := Options{RTTWidth: DefaultRTTWidth}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return options
}
