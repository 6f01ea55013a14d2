// Package headless implements gpu.Context in memory.
//
// Textures keep their pixel data, programs keep their sources and the
// uniforms they declare, and uniform values and texture-unit bindings are
// recorded per program. Nothing is rasterized: DrawStyle only records the
// call. Misuse (deleted or unknown handles, bad locations) is queued and
// reported by Errors, the way glGetError reports it.
package headless

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"github.com/sandrolain/goviz/pkg/gpu"
)

// Texture is the stored state of a texture.
type Texture struct {
	Spec    gpu.TextureSpec
	Deleted bool
}

// Program is the stored state of a linked program.
type Program struct {
	VertexSource   string
	FragmentSource string
	Uniforms       []string // declared uniform names in declaration order
	Ints           map[string]int
	Floats         map[string]float32
	Deleted        bool
}

// Draw records one DrawStyle call.
type Draw struct {
	Program gpu.Program
	Target  gpu.Texture
	Width   int
	Height  int
	// Units maps texture unit to the texture bound when the draw was issued.
	Units map[int]gpu.Texture
}

// Context is an in-memory gpu.Context. It is safe for concurrent use.
type Context struct {
	mu       sync.Mutex
	logger   *slog.Logger
	nextID   uint32
	textures map[gpu.Texture]*Texture
	buffers  map[gpu.Buffer][]float32
	deleted  map[gpu.Buffer]bool
	programs map[gpu.Program]*Program
	current  gpu.Program
	unit     int
	units    map[int]gpu.Texture
	draws    []Draw
	errs     []error
	linkErr  func(vertex, fragment string) error
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// WithLinkCheck installs a hook run by CreateProgram; a non-nil error fails
// the link.
func WithLinkCheck(check func(vertex, fragment string) error) Option {
	return func(c *Context) {
		c.linkErr = check
	}
}

// New creates an empty context.
func New(opts ...Option) *Context {
	c := &Context{
		textures: make(map[gpu.Texture]*Texture),
		buffers:  make(map[gpu.Buffer][]float32),
		deleted:  make(map[gpu.Buffer]bool),
		programs: make(map[gpu.Program]*Program),
		units:    make(map[int]gpu.Texture),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func (c *Context) id() uint32 {
	c.nextID++
	return c.nextID
}

func (c *Context) fail(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	c.logger.Debug("headless gl error", "error", err)
	c.errs = append(c.errs, err)
}

// Errors returns and clears the queued misuse errors.
func (c *Context) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	errs := c.errs
	c.errs = nil
	return errs
}

// CreateTexture implements gpu.Context.
func (c *Context) CreateTexture() gpu.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := gpu.Texture(c.id())
	c.textures[t] = &Texture{}
	return t
}

// TexImage2D implements gpu.Context.
func (c *Context) TexImage2D(t gpu.Texture, spec gpu.TextureSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tex, ok := c.liveTexture(t)
	if !ok {
		return
	}
	switch spec.Format {
	case gpu.RGBA8:
		if spec.Pixels == nil {
			spec.Pixels = make([]byte, 4*spec.Width*spec.Height)
		} else if len(spec.Pixels) != 4*spec.Width*spec.Height {
			c.fail("texImage2D: %d bytes for a %dx%d RGBA texture", len(spec.Pixels), spec.Width, spec.Height)
			return
		}
		spec.Pixels = append([]byte(nil), spec.Pixels...)
	case gpu.AlphaFloat:
		if len(spec.Floats) > spec.Width*spec.Height {
			c.fail("texImage2D: %d floats for a %dx%d texture", len(spec.Floats), spec.Width, spec.Height)
			return
		}
		floats := make([]float32, spec.Width*spec.Height)
		copy(floats, spec.Floats)
		spec.Floats = floats
	}
	tex.Spec = spec
}

func (c *Context) liveTexture(t gpu.Texture) (*Texture, bool) {
	if t == gpu.FreedTexture {
		c.fail("use of freed texture")
		return nil, false
	}
	tex, ok := c.textures[t]
	if !ok {
		c.fail("unknown texture %d", t)
		return nil, false
	}
	if tex.Deleted {
		c.fail("use of deleted texture %d", t)
		return nil, false
	}
	return tex, true
}

// DeleteTexture implements gpu.Context. Deleting twice is an error.
func (c *Context) DeleteTexture(t gpu.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tex, ok := c.liveTexture(t); ok {
		tex.Deleted = true
		tex.Spec.Pixels = nil
		tex.Spec.Floats = nil
	}
}

// CreateBuffer implements gpu.Context.
func (c *Context) CreateBuffer() gpu.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := gpu.Buffer(c.id())
	c.buffers[b] = nil
	return b
}

// BufferData implements gpu.Context.
func (c *Context) BufferData(b gpu.Buffer, data []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveBuffer(b) {
		return
	}
	c.buffers[b] = append([]float32(nil), data...)
}

func (c *Context) liveBuffer(b gpu.Buffer) bool {
	if b == gpu.FreedBuffer {
		c.fail("use of freed buffer")
		return false
	}
	if _, ok := c.buffers[b]; !ok {
		c.fail("unknown buffer %d", b)
		return false
	}
	if c.deleted[b] {
		c.fail("use of deleted buffer %d", b)
		return false
	}
	return true
}

// DeleteBuffer implements gpu.Context.
func (c *Context) DeleteBuffer(b gpu.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.liveBuffer(b) {
		c.deleted[b] = true
		c.buffers[b] = nil
	}
}

var uniformDecl = regexp.MustCompile(`uniform\s+\w+\s+(\w+)\s*;`)

// CreateProgram implements gpu.Context. The declared uniforms of both stages
// become the program's active uniforms.
func (c *Context) CreateProgram(vertexSource, fragmentSource string) (gpu.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.linkErr != nil {
		if err := c.linkErr(vertexSource, fragmentSource); err != nil {
			return 0, err
		}
	}
	p := &Program{
		VertexSource:   vertexSource,
		FragmentSource: fragmentSource,
		Ints:           make(map[string]int),
		Floats:         make(map[string]float32),
	}
	seen := make(map[string]bool)
	for _, src := range []string{vertexSource, fragmentSource} {
		for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				p.Uniforms = append(p.Uniforms, m[1])
			}
		}
	}
	id := gpu.Program(c.id())
	c.programs[id] = p
	c.logger.Debug("headless program linked", "program", id, "uniforms", len(p.Uniforms))
	return id, nil
}

// DeleteProgram implements gpu.Context.
func (c *Context) DeleteProgram(p gpu.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prog, ok := c.liveProgram(p); ok {
		prog.Deleted = true
	}
}

func (c *Context) liveProgram(p gpu.Program) (*Program, bool) {
	prog, ok := c.programs[p]
	if !ok || p == gpu.FreedProgram {
		c.fail("unknown program %d", p)
		return nil, false
	}
	if prog.Deleted {
		c.fail("use of deleted program %d", p)
		return nil, false
	}
	return prog, true
}

// UseProgram implements gpu.Context.
func (c *Context) UseProgram(p gpu.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.liveProgram(p); ok {
		c.current = p
	}
}

// UniformLocation implements gpu.Context. Locations encode the program so
// that a location used with another program is detected.
func (c *Context) UniformLocation(p gpu.Program, name string) gpu.UniformLocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	prog, ok := c.liveProgram(p)
	if !ok {
		return gpu.NoLocation
	}
	for i, u := range prog.Uniforms {
		if u == name {
			return gpu.UniformLocation(int32(p)<<16 | int32(i))
		}
	}
	return gpu.NoLocation
}

func (c *Context) uniformName(loc gpu.UniformLocation) (*Program, string, bool) {
	if loc == gpu.NoLocation {
		return nil, "", false
	}
	p := gpu.Program(loc >> 16)
	if p != c.current {
		c.fail("uniform location %d does not belong to the current program %d", loc, c.current)
		return nil, "", false
	}
	prog, ok := c.liveProgram(p)
	if !ok {
		return nil, "", false
	}
	i := int(loc & 0xffff)
	if i >= len(prog.Uniforms) {
		c.fail("invalid uniform location %d", loc)
		return nil, "", false
	}
	return prog, prog.Uniforms[i], true
}

// ActiveTexture implements gpu.Context.
func (c *Context) ActiveTexture(unit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if unit < 0 {
		c.fail("invalid texture unit %d", unit)
		return
	}
	c.unit = unit
}

// BindTexture implements gpu.Context.
func (c *Context) BindTexture(t gpu.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.liveTexture(t); ok {
		c.units[c.unit] = t
	}
}

// Uniform1i implements gpu.Context. Setting an inactive uniform
// (gpu.NoLocation) is silently ignored, as in GL.
func (c *Context) Uniform1i(loc gpu.UniformLocation, v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prog, name, ok := c.uniformName(loc); ok {
		prog.Ints[name] = v
	}
}

// Uniform1f implements gpu.Context.
func (c *Context) Uniform1f(loc gpu.UniformLocation, v float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prog, name, ok := c.uniformName(loc); ok {
		prog.Floats[name] = v
	}
}

// DrawStyle implements gpu.Context.
func (c *Context) DrawStyle(target gpu.Texture, width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.liveTexture(target); !ok {
		return
	}
	if _, ok := c.liveProgram(c.current); !ok {
		return
	}
	units := make(map[int]gpu.Texture, len(c.units))
	for u, t := range c.units {
		units[u] = t
	}
	c.draws = append(c.draws, Draw{Program: c.current, Target: target, Width: width, Height: height, Units: units})
}

// Draws returns the recorded DrawStyle calls.
func (c *Context) Draws() []Draw {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Draw(nil), c.draws...)
}

// ProgramState returns the stored state of p.
func (c *Context) ProgramState(p gpu.Program) (*Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prog, ok := c.programs[p]
	return prog, ok
}

// TextureState returns the stored state of t.
func (c *Context) TextureState(t gpu.Texture) (*Texture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tex, ok := c.textures[t]
	return tex, ok
}

// BoundTexture returns the texture bound to unit.
func (c *Context) BoundTexture(unit int) (gpu.Texture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.units[unit]
	return t, ok
}

// LiveTextures returns the handles of textures not yet deleted, sorted.
func (c *Context) LiveTextures() []gpu.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	var live []gpu.Texture
	for t, tex := range c.textures {
		if !tex.Deleted {
			live = append(live, t)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i] < live[j] })
	return live
}

// LiveBuffers returns the number of buffers not yet deleted.
func (c *Context) LiveBuffers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for b := range c.buffers {
		if !c.deleted[b] {
			n++
		}
	}
	return n
}
