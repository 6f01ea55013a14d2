package goviz

import (
	"strings"
	"testing"

	"github.com/sandrolain/goviz/pkg/gpu/headless"
	"github.com/sandrolain/goviz/pkg/types"
)

var meta = types.NewMetadata(
	types.Column{Name: "size", Type: types.TypeNumber, Min: 0, Max: 50, Avg: 20},
	types.Column{Name: "kind", Type: types.TypeCategory, CategoryNames: []string{"park", "lake"}},
)

func TestVersion(t *testing.T) {
	if Version() == "" {
		t.Error("Version() is empty")
	}
}

func TestParseViz(t *testing.T) {
	v, err := ParseViz("width = prop.size\nfilter = prop.size > 10")
	if err != nil {
		t.Fatalf("ParseViz() error = %v", err)
	}
	if err := v.Compile(meta); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got, err := v.Number(types.StyleWidth, types.Feature{"size": 12}); err != nil || got != 12 {
		t.Errorf("Number(width) = %v, %v, want 12", got, err)
	}
	if got, err := v.Number(types.StyleFilter, types.Feature{"size": 5}); err != nil || got != 0 {
		t.Errorf("Number(filter) = %v, %v, want 0", got, err)
	}
}

func TestMustParseVizPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParseViz() did not panic")
		}
	}()
	MustParseViz("width = ")
}

func TestCompileViz(t *testing.T) {
	gl := headless.New()
	v, err := CompileViz(gl, "color = ramp(prop.kind, BOLD)\nwidth = prop.size", meta)
	if err != nil {
		t.Fatalf("CompileViz() error = %v", err)
	}
	for _, p := range types.ShadedStyles {
		c, err := v.Shader(p)
		if err != nil {
			t.Fatalf("Shader(%s) error = %v", p, err)
		}
		if c.Shader == nil || c.Shader.FragmentSource == "" {
			t.Errorf("Shader(%s) has no fragment source", p)
		}
	}
	c, _ := v.Shader(types.StyleWidth)
	if len(c.Properties) != 1 || c.Properties[0].Name != "size" {
		t.Errorf("width properties = %+v, want the size slot", c.Properties)
	}
	if !strings.Contains(c.Shader.FragmentSource, "propertyTex0") {
		t.Errorf("width program does not sample its property:\n%s", c.Shader.FragmentSource)
	}
	if errs := gl.Errors(); len(errs) != 0 {
		t.Errorf("gl errors: %v", errs)
	}
}

func TestCompileVizErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want types.ErrorCode
	}{
		{"syntax", "width = (", types.ErrSyntax},
		{"unknown style", "colour = RED", types.ErrUnknownStyle},
		{"unknown property", "width = prop.missing", types.ErrUnknownProperty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileViz(headless.New(), tt.src, meta)
			if got := types.CodeOf(err); got != tt.want {
				t.Errorf("CompileViz() error = %v, want %s", err, tt.want)
			}
		})
	}
	if _, err := CompileViz(nil, "width = 1", meta); types.CodeOf(err) != types.ErrInvalidParameter {
		t.Errorf("nil context error = %v", err)
	}
}
