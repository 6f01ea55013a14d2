package shader

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/sandrolain/goviz/pkg/cache"
	"github.com/sandrolain/goviz/pkg/expressions"
	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/gpu/headless"
	"github.com/sandrolain/goviz/pkg/types"
)

var meta = types.NewMetadata(
	types.Column{Name: "a", Type: types.TypeNumber, Max: 10},
	types.Column{Name: "b", Type: types.TypeNumber, Max: 10},
)

// sumTree builds b + a*b.
func sumTree(t *testing.T) expressions.Node {
	t.Helper()
	a, _ := expressions.NewProperty("a")
	b, _ := expressions.NewProperty("b")
	b2, _ := expressions.NewProperty("b")
	mul, err := expressions.NewMul(a, b2)
	if err != nil {
		t.Fatal(err)
	}
	root, err := expressions.NewAdd(b, mul)
	if err != nil {
		t.Fatal(err)
	}
	if err := root.Compile(meta); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return root
}

func TestCompilePropertySlots(t *testing.T) {
	gl := headless.New()
	c, err := Compile(gl, sumTree(t), NewFactory(FilterTemplate, nil))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(c.Properties) != 2 || c.Properties[0].Name != "b" || c.Properties[1].Name != "a" {
		t.Fatalf("Properties = %+v, want slots b then a", c.Properties)
	}
	wantInline := "(texture2D(propertyTex0, featureID).a + (texture2D(propertyTex1, featureID).a * texture2D(propertyTex0, featureID).a))"
	if c.Inline != wantInline {
		t.Errorf("Inline =\n%s\nwant\n%s", c.Inline, wantInline)
	}
	if !strings.Contains(c.Preface, "uniform sampler2D propertyTex0;\nuniform sampler2D propertyTex1;\n") {
		t.Errorf("Preface lacks the property samplers:\n%s", c.Preface)
	}
	if !strings.Contains(c.Shader.FragmentSource, "float filterValue = "+wantInline+";") {
		t.Errorf("fragment source does not embed the inline code:\n%s", c.Shader.FragmentSource)
	}
	for _, slot := range c.Properties {
		if slot.Location == gpu.NoLocation {
			t.Errorf("slot %s has no location", slot.Name)
		}
	}
}

func TestBind(t *testing.T) {
	gl := headless.New()
	c, err := Compile(gl, sumTree(t), NewFactory(FilterTemplate, nil))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	texA, texB := gl.CreateTexture(), gl.CreateTexture()
	err = c.Bind(gl, func(name string) (gpu.Texture, error) {
		switch name {
		case "a":
			return texA, nil
		case "b":
			return texB, nil
		}
		return 0, MissingProperty(name)
	})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	prog, _ := gl.ProgramState(c.Shader.Program)
	if prog.Ints["propertyTex0"] != 0 || prog.Ints["propertyTex1"] != 1 {
		t.Errorf("sampler units = %v", prog.Ints)
	}
	if got, _ := gl.BoundTexture(0); got != texB {
		t.Errorf("unit 0 = %d, want b's texture %d", got, texB)
	}
	if got, _ := gl.BoundTexture(1); got != texA {
		t.Errorf("unit 1 = %d, want a's texture %d", got, texA)
	}

	err = c.Bind(gl, func(name string) (gpu.Texture, error) { return 0, MissingProperty(name) })
	if types.CodeOf(err) != types.ErrUnknownProperty {
		t.Errorf("Bind() with missing texture error = %v", err)
	}
}

func TestFactoryCache(t *testing.T) {
	gl := headless.New()
	other := headless.New()
	c := cache.New()
	factory := NewFactory(ColorTemplate, c)

	s1, err := factory(gl, "", "vec4(1.0)")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := factory(gl, "", "vec4(1.0)")
	if err != nil {
		t.Fatal(err)
	}
	if s1.Program != s2.Program {
		t.Errorf("same source linked twice: %d and %d", s1.Program, s2.Program)
	}
	s3, err := factory(gl, "", "vec4(0.5)")
	if err != nil {
		t.Fatal(err)
	}
	if s3.Program == s1.Program {
		t.Error("different sources share a program")
	}
	if _, err := factory(other, "", "vec4(1.0)"); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 3 {
		t.Errorf("cache holds %d programs, want 3", c.Len())
	}
}

func TestFactoryLinkError(t *testing.T) {
	linkErr := errors.New("syntax error at line 3")
	gl := headless.New(headless.WithLinkCheck(func(_, fragment string) error {
		if strings.Contains(fragment, "broken") {
			return linkErr
		}
		return nil
	}))
	c := cache.New()
	_, err := NewFactory(ColorTemplate, c)(gl, "", "broken")
	if types.CodeOf(err) != types.ErrShaderLink {
		t.Fatalf("error = %v, want %s", err, types.ErrShaderLink)
	}
	if !errors.Is(err, linkErr) {
		t.Error("link error cause is lost")
	}
	if c.Len() != 0 {
		t.Error("failed link was cached")
	}
}

func TestTemplateRender(t *testing.T) {
	vs, fs := WidthTemplate.Render("uniform float w0;\n", "w0*2.0")
	if vs != styleVertex {
		t.Error("vertex source changed by Render")
	}
	if strings.Contains(fs, "$preface") || strings.Contains(fs, "$inline") {
		t.Errorf("placeholders left in fragment source:\n%s", fs)
	}
	if !strings.Contains(fs, "uniform float w0;") || !strings.Contains(fs, "float width = w0*2.0;") {
		t.Errorf("fragment source =\n%s", fs)
	}
}

func TestWidthEncoding(t *testing.T) {
	for x := 0.0; x <= 334; x += 0.1 {
		b := byte(math.Round(EncodeWidth(x) * 255))
		step := 2.0
		switch {
		case x < 16:
			step = 0.25
		case x < 80:
			step = 1
		}
		if got := DecodeWidth(b); math.Abs(got-x) > step/2+1e-9 {
			t.Fatalf("DecodeWidth(EncodeWidth(%v)) = %v, more than half a step (%v) off", x, got, step)
		}
	}
	if got := EncodeWidth(1000); got != 1 {
		t.Errorf("EncodeWidth(1000) = %v, want 1", got)
	}
	if got := EncodeWidth(-3); got != 0 {
		t.Errorf("EncodeWidth(-3) = %v, want 0", got)
	}
}
