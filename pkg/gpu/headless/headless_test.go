package headless

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sandrolain/goviz/pkg/gpu"
)

const fragment = `uniform float alpha0;
uniform sampler2D propertyTex0;
void main(void) {}
`

func TestProgramUniforms(t *testing.T) {
	c := New()
	p, err := c.CreateProgram("attribute vec2 vertex;", fragment)
	if err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	prog, ok := c.ProgramState(p)
	if !ok {
		t.Fatal("ProgramState() missing")
	}
	if diff := cmp.Diff([]string{"alpha0", "propertyTex0"}, prog.Uniforms); diff != "" {
		t.Errorf("Uniforms (-want +got):\n%s", diff)
	}

	if loc := c.UniformLocation(p, "unused"); loc != gpu.NoLocation {
		t.Errorf("UniformLocation(unused) = %d, want NoLocation", loc)
	}
	c.UseProgram(p)
	c.Uniform1f(c.UniformLocation(p, "alpha0"), 0.25)
	c.Uniform1i(c.UniformLocation(p, "propertyTex0"), 3)
	c.Uniform1f(gpu.NoLocation, 9)
	if prog.Floats["alpha0"] != 0.25 || prog.Ints["propertyTex0"] != 3 {
		t.Errorf("uniform values = %v %v", prog.Floats, prog.Ints)
	}
	if errs := c.Errors(); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestLocationOfOtherProgram(t *testing.T) {
	c := New()
	p1, _ := c.CreateProgram("", fragment)
	p2, _ := c.CreateProgram("", fragment)
	loc := c.UniformLocation(p1, "alpha0")
	c.UseProgram(p2)
	c.Uniform1f(loc, 1)
	if errs := c.Errors(); len(errs) != 1 {
		t.Errorf("Errors() = %v, want one foreign location error", errs)
	}
}

func TestTextureLifecycle(t *testing.T) {
	c := New()
	tex := c.CreateTexture()
	c.TexImage2D(tex, gpu.TextureSpec{Width: 2, Height: 2, Format: gpu.AlphaFloat, Floats: []float32{1, 2}})
	state, _ := c.TextureState(tex)
	if diff := cmp.Diff([]float32{1, 2, 0, 0}, state.Spec.Floats); diff != "" {
		t.Errorf("Floats (-want +got):\n%s", diff)
	}
	c.TexImage2D(tex, gpu.TextureSpec{Width: 1, Height: 1, Format: gpu.RGBA8, Pixels: []byte{1, 2}})
	if errs := c.Errors(); len(errs) != 1 {
		t.Errorf("short pixel upload errors = %v", errs)
	}

	c.ActiveTexture(2)
	c.BindTexture(tex)
	if got, ok := c.BoundTexture(2); !ok || got != tex {
		t.Errorf("BoundTexture(2) = %d, %v", got, ok)
	}
	if diff := cmp.Diff([]gpu.Texture{tex}, c.LiveTextures()); diff != "" {
		t.Errorf("LiveTextures (-want +got):\n%s", diff)
	}

	c.DeleteTexture(tex)
	c.DeleteTexture(tex)
	c.BindTexture(gpu.FreedTexture)
	if errs := c.Errors(); len(errs) != 2 {
		t.Errorf("double delete and freed bind errors = %v", errs)
	}
	if len(c.LiveTextures()) != 0 {
		t.Error("deleted texture still live")
	}
}

func TestBuffers(t *testing.T) {
	c := New()
	b := c.CreateBuffer()
	c.BufferData(b, []float32{1, 2, 3})
	if c.LiveBuffers() != 1 {
		t.Errorf("LiveBuffers() = %d, want 1", c.LiveBuffers())
	}
	c.DeleteBuffer(b)
	c.BufferData(b, nil)
	if c.LiveBuffers() != 0 || len(c.Errors()) != 1 {
		t.Error("deleted buffer still usable")
	}
}

func TestLinkCheckAndDraws(t *testing.T) {
	bad := errors.New("link failed")
	c := New(WithLinkCheck(func(_, fs string) error {
		if fs == "" {
			return bad
		}
		return nil
	}))
	if _, err := c.CreateProgram("", ""); !errors.Is(err, bad) {
		t.Errorf("CreateProgram() error = %v", err)
	}
	p, _ := c.CreateProgram("", fragment)
	target := c.CreateTexture()
	src := c.CreateTexture()
	c.UseProgram(p)
	c.ActiveTexture(0)
	c.BindTexture(src)
	c.DrawStyle(target, 4, 1)
	draws := c.Draws()
	if len(draws) != 1 {
		t.Fatalf("Draws() = %d, want 1", len(draws))
	}
	want := Draw{Program: p, Target: target, Width: 4, Height: 1, Units: map[int]gpu.Texture{0: src}}
	if diff := cmp.Diff(want, draws[0]); diff != "" {
		t.Errorf("draw (-want +got):\n%s", diff)
	}
}
