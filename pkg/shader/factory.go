package shader

import (
	"log/slog"

	"github.com/sandrolain/goviz/pkg/cache"
	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/types"
)

// Shader is a linked program and the sources it was linked from.
type Shader struct {
	Program        gpu.Program
	VertexSource   string
	FragmentSource string
}

// Factory links a program from the generated preface and inline GLSL.
type Factory func(gl gpu.Context, preface, inline string) (*Shader, error)

// NewFactory returns a Factory rendering template and linking through c.
// A program is reused when the context and the full source match a cached
// entry. A nil cache links every time.
func NewFactory(template Template, c *cache.Cache, opts ...Option) Factory {
	options := newOptions(opts)
	return func(gl gpu.Context, preface, inline string) (*Shader, error) {
		vs, fs := template.Render(preface, inline)
		link := func() (gpu.Program, error) {
			options.Logger.Debug("linking shader program", "template", template.Name, "fragmentBytes", len(fs))
			p, err := gl.CreateProgram(vs, fs)
			if err != nil {
				return 0, types.Errorf(types.ErrShaderLink, "linking %s shader", template.Name).WithCause(err)
			}
			return p, nil
		}
		var (
			p   gpu.Program
			err error
		)
		if c == nil {
			p, err = link()
		} else {
			p, err = c.GetOrCompile(gl, vs+"\x00"+fs, link)
		}
		if err != nil {
			return nil, err
		}
		return &Shader{Program: p, VertexSource: vs, FragmentSource: fs}, nil
	}
}

// Options configures shader compilation.
type Options struct {
	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option configures Options.
type Option func(*Options)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
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
