// Package gpu defines the rendering-context capability the viz core needs.
//
// The core never talks to a graphics API directly. It receives a Context and
// uses it to create textures and buffers, link programs and set uniforms.
// Context implementations must be pointer types: a Context value is used as a
// map key to scope cached programs to the context that linked them.
package gpu

// Texture, Buffer and Program are opaque handles owned by a Context.
type (
	Texture uint32
	Buffer  uint32
	Program uint32
)

// UniformLocation identifies a uniform inside a linked program.
// NoLocation is returned for uniforms the program does not use.
type UniformLocation int32

// NoLocation marks an unresolved uniform.
const NoLocation UniformLocation = -1

// Freed sentinels. Owners overwrite their handles with these values on
// release so that any later use is detectable.
const (
	FreedTexture Texture = ^Texture(0)
	FreedBuffer  Buffer  = ^Buffer(0)
	FreedProgram Program = ^Program(0)
)

// Format is the pixel layout of a texture upload.
type Format int

const (
	// RGBA8 holds four bytes per texel.
	RGBA8 Format = iota
	// AlphaFloat holds one float32 per texel, read through the alpha channel.
	AlphaFloat
)

// Filter is the sampling filter of a texture.
type Filter int

const (
	Nearest Filter = iota
	Linear
)

// TextureSpec describes a 2D texture upload. Exactly one of Pixels (RGBA8) or
// Floats (AlphaFloat) is used; a nil slice allocates uninitialized storage.
type TextureSpec struct {
	Width, Height int
	Format        Format
	Filter        Filter
	Pixels        []byte
	Floats        []float32
}

// Context is the rendering-context capability. Methods mirror WebGL calls.
// Implementations report misuse (for example binding a deleted texture)
// through their own error channel rather than by returning errors, as GL
// does.
type Context interface {
	CreateTexture() Texture
	TexImage2D(t Texture, spec TextureSpec)
	DeleteTexture(t Texture)

	CreateBuffer() Buffer
	BufferData(b Buffer, data []float32)
	DeleteBuffer(b Buffer)

	// CreateProgram compiles and links a program. Link failures are returned.
	CreateProgram(vertexSource, fragmentSource string) (Program, error)
	DeleteProgram(p Program)
	UseProgram(p Program)
	UniformLocation(p Program, name string) UniformLocation

	ActiveTexture(unit int)
	BindTexture(t Texture)
	Uniform1i(loc UniformLocation, v int)
	Uniform1f(loc UniformLocation, v float32)

	// DrawStyle renders the bound program into target, one fragment per
	// feature texel.
	DrawStyle(target Texture, width, height int)
}
