package glslinterp

import (
	"math"
	"strconv"
	"testing"

	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/gpu/headless"
)

const preface = `uniform float scale0;
uniform sampler2D propertyTex0;
uniform sampler2D ramp1;
float buckets2(float x){
    if (x<(10.0)){
        return 0.0;
    } else if (x<(scale0*10.0)){
        return 1.0;
    }
    return 2.0;
}
`

func setup(t *testing.T) (*headless.Context, *Interpreter) {
	t.Helper()
	gl := headless.New()
	p, err := gl.CreateProgram("", preface)
	if err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	gl.UseProgram(p)
	gl.Uniform1f(gl.UniformLocation(p, "scale0"), 3)

	props := gl.CreateTexture()
	gl.TexImage2D(props, gpu.TextureSpec{Width: 4, Height: 1, Format: gpu.AlphaFloat, Filter: gpu.Nearest, Floats: []float32{5, 15, 25, 35}})
	gl.ActiveTexture(0)
	gl.BindTexture(props)
	gl.Uniform1i(gl.UniformLocation(p, "propertyTex0"), 0)

	ramp := gl.CreateTexture()
	gl.TexImage2D(ramp, gpu.TextureSpec{Width: 2, Height: 1, Format: gpu.RGBA8, Filter: gpu.Linear, Pixels: []byte{0, 0, 0, 255, 255, 255, 255, 255}})
	gl.ActiveTexture(1)
	gl.BindTexture(ramp)
	gl.Uniform1i(gl.UniformLocation(p, "ramp1"), 1)

	in, err := New(gl, p, preface)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gl, in
}

func TestFloat(t *testing.T) {
	_, in := setup(t)
	tests := []struct {
		name    string
		inline  string
		feature int
		want    float64
	}{
		{"literal arithmetic", "(1.0 + 2.0) * 4.0", 0, 12},
		{"uniform", "scale0 / 2.0", 0, 1.5},
		{"property", "texture2D(propertyTex0, featureID).a", 2, 25},
		{"conditional", "((texture2D(propertyTex0, featureID).a) > (20.0) ? 1.0 : 0.0)", 1, 0},
		{"boolean", "(((1.0 == 1.0) || (1.0 == 2.0)) ? 1.0 : 0.0)", 0, 1},
		{"mod", "mod(-1.0, 4.0)", 0, 3},
		{"clamp", "clamp(7.0, 0.0, 1.0)", 0, 1},
		{"mix", "mix(10.0, 20.0, 0.25)", 0, 12.5},
		{"buckets low", "buckets2(texture2D(propertyTex0, featureID).a)", 0, 0},
		{"buckets mid", "buckets2(texture2D(propertyTex0, featureID).a)", 2, 1},
		{"buckets high", "buckets2(texture2D(propertyTex0, featureID).a)", 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := [2]float64{(float64(tt.feature) + 0.5) / 4, 0.5}
			got, err := in.Float(tt.inline, id)
			if err != nil {
				t.Fatalf("Float(%q) error = %v", tt.inline, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Float(%q) = %v, want %v", tt.inline, got, tt.want)
			}
		})
	}
}

func TestVec4LinearSampling(t *testing.T) {
	_, in := setup(t)
	tests := []struct {
		u    float64
		want float64
	}{
		{0, 0},
		{0.25, 0},
		{0.5, 0.5},
		{0.75, 1},
		{1, 1},
	}
	for _, tt := range tests {
		got, err := in.Vec4("texture2D(ramp1, vec2("+strconv.FormatFloat(tt.u, 'f', -1, 64)+", 0.5)).rgba", [2]float64{})
		if err != nil {
			t.Fatalf("Vec4() error = %v", err)
		}
		if math.Abs(got[0]-tt.want) > 1e-9 || got[3] != 1 {
			t.Errorf("sample at %v = %v, want red %v", tt.u, got, tt.want)
		}
	}
}

func TestErrors(t *testing.T) {
	gl, in := setup(t)
	for _, inline := range []string{
		"vec4(1.0, 2.0, 3.0, 4.0)",
		"sqrt(-1.0)",
		"texture2D(unbound, featureID).a",
		"1.0 +",
	} {
		if _, err := in.Float(inline, [2]float64{}); err == nil {
			t.Errorf("Float(%q) expected an error", inline)
		}
	}
	if errs := gl.Errors(); len(errs) != 0 {
		t.Errorf("unexpected GL errors: %v", errs)
	}
}

func TestBadBuckets(t *testing.T) {
	gl := headless.New()
	src := "float buckets0(float x){\n    if (x<(1.0)){\n        return 0.0;\n    }\n}\n"
	p, err := gl.CreateProgram("", src)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(gl, p, src); err == nil {
		t.Error("New() expected an error for a helper without fallback")
	}
}
