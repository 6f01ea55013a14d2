package expressions_test

import (
	"math"
	"testing"
	"time"

	"github.com/sandrolain/goviz/internal/glslinterp"
	"github.com/sandrolain/goviz/pkg/expressions"
	"github.com/sandrolain/goviz/pkg/gpu"
	"github.com/sandrolain/goviz/pkg/gpu/headless"
	"github.com/sandrolain/goviz/pkg/palettes"
	"github.com/sandrolain/goviz/pkg/shader"
	"github.com/sandrolain/goviz/pkg/types"
)

var meta = types.NewMetadata(
	types.Column{Name: "price", Type: types.TypeNumber, Min: 0, Max: 200, Avg: 60},
	types.Column{Name: "cat", Type: types.TypeCategory, CategoryNames: []string{"a", "b", "c", "d", "e"}},
)

var features = []types.Feature{
	{"price": 0, "cat": 0},
	{"price": 10, "cat": 1},
	{"price": 30, "cat": 2},
	{"price": 79, "cat": 3},
	{"price": 80, "cat": 4},
	{"price": 100, "cat": 0},
	{"price": 120, "cat": 2},
	{"price": 200, "cat": 4},
}

// clock is 5s past the epoch: a 10s torque is half way through its cycle.
var clock = expressions.Clock(func() time.Time { return time.Unix(5, 0) })

// gpuRun compiles root into a style program over features and returns an
// interpreter with the program bound as for a draw.
func gpuRun(t *testing.T, root expressions.Node) (*glslinterp.Interpreter, *shader.Compiled) {
	t.Helper()
	if err := root.Compile(meta); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	gl := headless.New()
	template := shader.FilterTemplate
	if root.Type() == types.TypeColor {
		template = shader.ColorTemplate
	}
	compiled, err := shader.Compile(gl, root, shader.NewFactory(template, nil))
	if err != nil {
		t.Fatalf("shader.Compile() error = %v", err)
	}
	textures := make(map[string]gpu.Texture)
	for _, slot := range compiled.Properties {
		values := make([]float32, len(features))
		for i, f := range features {
			values[i] = float32(f[slot.Name])
		}
		tex := gl.CreateTexture()
		gl.TexImage2D(tex, gpu.TextureSpec{Width: len(values), Height: 1, Format: gpu.AlphaFloat, Filter: gpu.Nearest, Floats: values})
		textures[slot.Name] = tex
	}
	err = compiled.Bind(gl, func(name string) (gpu.Texture, error) {
		tex, ok := textures[name]
		if !ok {
			return 0, shader.MissingProperty(name)
		}
		return tex, nil
	})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if errs := gl.Errors(); len(errs) != 0 {
		t.Fatalf("GL errors: %v", errs)
	}
	in, err := glslinterp.New(gl, compiled.Shader.Program, compiled.Preface)
	if err != nil {
		t.Fatalf("glslinterp.New() error = %v\npreface:\n%s", err, compiled.Preface)
	}
	return in, compiled
}

func featureID(i int) [2]float64 {
	return [2]float64{(float64(i) + 0.5) / float64(len(features)), 0.5}
}

func TestHostMatchesGPU(t *testing.T) {
	prop := func(name string) *expressions.Property {
		p, err := expressions.NewProperty(name)
		if err != nil {
			t.Fatal(err)
		}
		return p
	}
	must := func(n expressions.Node, err error) expressions.Node {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return n
	}

	tests := []struct {
		name string
		root func() expressions.Node
	}{
		{"number buckets", func() expressions.Node {
			return must(expressions.NewBuckets(prop("price"), 30, 80, 120))
		}},
		{"category buckets", func() expressions.Node {
			return must(expressions.NewBuckets(prop("cat"), "b", "d"))
		}},
		{"linear", func() expressions.Node {
			return must(expressions.NewLinearProperty(prop("price")))
		}},
		{"arithmetic", func() expressions.Node {
			sum := must(expressions.NewAdd(prop("price"), must(expressions.NewMul(prop("price"), 0.5))))
			return must(expressions.NewSqrt(must(expressions.NewMod(sum, 7))))
		}},
		{"comparison", func() expressions.Node {
			return must(expressions.NewGreaterThanOrEqual(prop("price"), 80))
		}},
		{"equality", func() expressions.Node {
			return must(expressions.NewNotEquals(prop("cat"), "c"))
		}},
		{"in", func() expressions.Node {
			return must(expressions.NewIn(prop("cat"), "a", "e"))
		}},
		{"nin", func() expressions.Node {
			return must(expressions.NewNin(prop("cat"), "a", "e"))
		}},
		{"top", func() expressions.Node {
			return must(expressions.NewTop(prop("cat"), 3))
		}},
		{"ramp numbers", func() expressions.Node {
			return must(expressions.NewRamp(must(expressions.NewLinearProperty(prop("price"))), []float64{2, 4, 16}))
		}},
		{"ramp quantitative", func() expressions.Node {
			return must(expressions.NewRamp(must(expressions.NewLinearProperty(prop("price"))), palettes.MustLookup("SUNSET")))
		}},
		{"ramp qualitative top", func() expressions.Node {
			return must(expressions.NewRamp(must(expressions.NewTop(prop("cat"), 2)), palettes.MustLookup("PRISM")))
		}},
		{"ramp custom colors", func() expressions.Node {
			return must(expressions.NewRamp(must(expressions.NewBuckets(prop("price"), 50, 150)), []string{"#f00", "#0f0", "#00f"}))
		}},
		{"rgba", func() expressions.Node {
			return must(expressions.NewRGBA(prop("price"), 20, must(expressions.NewMul(prop("price"), 0.5)), 0.5))
		}},
		{"blend colors", func() expressions.Node {
			return must(expressions.NewBlend("#336699", must(expressions.NewNamedColor("gold")), must(expressions.NewLinearProperty(prop("price")))))
		}},
		{"torque", func() expressions.Node {
			fade := must(expressions.NewFade(0.5, 1)).(*expressions.Fade)
			return must(expressions.NewTorque(prop("price"), 10, fade, clock))
		}},
		{"now", func() expressions.Node {
			return must(expressions.NewSub(expressions.NewNow(clock), 4))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := tt.root()
			in, compiled := gpuRun(t, root)
			for i, f := range features {
				host, err := root.Eval(f)
				if err != nil {
					t.Fatalf("Eval(%v) error = %v", f, err)
				}
				if c, ok := host.(types.Color); ok {
					got, err := in.Vec4(compiled.Inline, featureID(i))
					if err != nil {
						t.Fatalf("GPU eval error = %v\ninline: %s", err, compiled.Inline)
					}
					want := [4]float64{c.R / 255, c.G / 255, c.B / 255, c.A}
					for k := range want {
						if math.Abs(got[k]-want[k]) > 1e-3 {
							t.Errorf("feature %d: GPU %v, host %v", i, got, want)
							break
						}
					}
					continue
				}
				got, err := in.Float(compiled.Inline, featureID(i))
				if err != nil {
					t.Fatalf("GPU eval error = %v\ninline: %s", err, compiled.Inline)
				}
				if want := host.(float64); math.Abs(got-want) > 1e-3 {
					t.Errorf("feature %d (%v): GPU %v, host %v", i, f, got, want)
				}
			}
		})
	}
}

func TestTransitionUniformTracksClock(t *testing.T) {
	now := time.Unix(100, 0)
	tr, err := expressions.NewTransition(4, func() time.Time { return now })
	if err != nil {
		t.Fatal(err)
	}
	blend, err := expressions.NewBlend(10, 30, tr)
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Second)
	in, compiled := gpuRun(t, blend)
	got, err := in.Float(compiled.Inline, featureID(0))
	if err != nil {
		t.Fatal(err)
	}
	if got != 15 {
		t.Errorf("blend at 25%% = %v, want 15", got)
	}
}
