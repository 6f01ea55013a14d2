package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/sandrolain/goviz/pkg/expressions"
	"github.com/sandrolain/goviz/pkg/functions"
	"github.com/sandrolain/goviz/pkg/palettes"
	"github.com/sandrolain/goviz/pkg/types"
)

var meta = types.NewMetadata(
	types.Column{Name: "speed", Type: types.TypeNumber, Min: 0, Max: 200, Avg: 70},
	types.Column{Name: "day", Type: types.TypeNumber, Min: 0, Max: 10},
	types.Column{Name: "kind", Type: types.TypeCategory, CategoryNames: []string{"bus", "tram", "metro"}},
	types.Column{Name: "max speed", Type: types.TypeNumber, Max: 1},
)

func TestParseViz(t *testing.T) {
	src := `
color  = ramp(buckets(prop.speed, [30, 80, 120]), PRISM)
width  = 5
filter = torque(prop.day, 40, fade(0.1, 0.3))
order  = desc(width())
`
	v, err := ParseViz(src)
	if err != nil {
		t.Fatalf("ParseViz() error = %v", err)
	}
	if err := v.Compile(meta); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got := v.Style(types.StyleColor).Name(); got != "ramp" {
		t.Errorf("color = %s(), want ramp()", got)
	}
	if got := v.Style(types.StyleFilter).Name(); got != "torque" {
		t.Errorf("filter = %s(), want torque()", got)
	}
	if got, err := v.Number(types.StyleWidth, nil); err != nil || got != 5 {
		t.Errorf("width = %v, %v", got, err)
	}
	if got := v.Order(); got != (expressions.Order{By: "width", Descending: true}) {
		t.Errorf("order = %+v", got)
	}
	if got, err := v.Number(types.StyleStrokeWidth, nil); err != nil || got != 0 {
		t.Errorf("default strokeWidth = %v, %v", got, err)
	}
}

func TestParseExpression(t *testing.T) {
	f := types.Feature{"speed": 40, "day": 2, "kind": 1, "max speed": 0.5}
	tests := []struct {
		src  string
		name string
		want any
	}{
		{"prop.speed + 2 * prop.day", "add", 44.0},
		{"(prop.speed + 2) * prop.day", "mul", 84.0},
		{"prop.speed % 7", "mod", 5.0},
		{"-prop.day", "negate", -2.0},
		{"-(3)", "number", -3.0},
		{"prop.speed >= 40", "greaterThanOrEqualTo", 1.0},
		{"prop.speed != 40", "notEquals", 0.0},
		{`prop["max speed"] * 10`, "mul", 5.0},
		{`property("speed") / 4`, "div", 10.0},
		{`in(prop.kind, ["bus", "tram"])`, "in", 1.0},
		{`nin(prop.kind, "tram")`, "nin", 0.0},
		{`prop.kind == "tram"`, "equals", 1.0},
		{"gt(prop.speed, 50)", "greaterThan", 0.0},
		{"linear(prop.speed)", "linear", 0.2},
		{"true", "number", 1.0},
		{"gold", "namedColor", types.Color{R: 255, G: 215, A: 1}},
		{`"#00f"`, "hex", types.Color{B: 255, A: 1}},
		{`blend("#000", "#fff", 0)`, "blend", types.Color{A: 1}},
		{`buckets(prop.kind, "tram")`, "buckets", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			n, err := ParseExpression(tt.src)
			if err != nil {
				t.Fatalf("ParseExpression() error = %v", err)
			}
			if n.Name() != tt.name {
				t.Errorf("root = %s(), want %s()", n.Name(), tt.name)
			}
			if err := n.Compile(meta); err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			got, err := n.Eval(f)
			if err != nil {
				t.Fatalf("Eval() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		viz  bool
		src  string
		want types.ErrorCode
	}{
		{"syntax", false, "1 +", types.ErrSyntax},
		{"unknown function", false, "frobnicate(1)", types.ErrUnknownFunction},
		{"argument count", false, "ramp(prop.speed)", types.ErrArgumentCount},
		{"unknown identifier", false, "notapalette", types.ErrSyntax},
		{"nested traversal", false, "prop.a.b", types.ErrSyntax},
		{"template", false, `"${prop.a}"`, types.ErrSyntax},
		{"logical operator", false, "1 == 1 && 2 == 2", types.ErrSyntax},
		{"conditional", false, "prop.a > 1 ? 1 : 0", types.ErrSyntax},
		{"null", false, "null", types.ErrSyntax},
		{"construction type", false, `add(prop.speed, "rural")`, types.ErrInvalidParameter},
		{"unknown style", true, "colour = 1", types.ErrUnknownStyle},
		{"block", true, "color {\n}\n", types.ErrSyntax},
		{"style type", true, "color = 3", types.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.viz {
				_, err = ParseViz(tt.src)
			} else {
				_, err = ParseExpression(tt.src)
			}
			if types.CodeOf(err) != tt.want {
				t.Errorf("error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestErrorRange(t *testing.T) {
	_, err := ParseViz("width = 1\ncolor = ramp(prop.kind, NOPE)\n", WithFilename("style.viz"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.HasPrefix(err.Error(), "S0301: style.viz:2,") {
		t.Errorf("error = %q, want a range on line 2", err)
	}
}

func TestMaxDepth(t *testing.T) {
	src := "abs(abs(abs(abs(1))))"
	if _, err := ParseExpression(src, WithMaxDepth(2)); types.CodeOf(err) != types.ErrSyntax {
		t.Errorf("depth limit error = %v", err)
	}
	if _, err := ParseExpression(src, WithMaxDepth(4)); err != nil {
		t.Errorf("ParseExpression() error = %v", err)
	}
}

func TestOptions(t *testing.T) {
	reg := functions.Builtins()
	reg.Register(functions.Def{Name: "double", MinArgs: 1, MaxArgs: 1, New: func(_ functions.Env, args ...any) (expressions.Node, error) {
		return expressions.NewMul(args[0], 2)
	}})
	n, err := ParseExpression("double(21)", WithFunctions(reg))
	if err != nil {
		t.Fatalf("ParseExpression() error = %v", err)
	}
	if v, _ := n.Eval(nil); v != 42.0 {
		t.Errorf("double(21) = %v", v)
	}

	pals := palettes.NewRegistry()
	mine, err := palettes.NewQualitative("MINE", "#000", "#fff")
	if err != nil {
		t.Fatal(err)
	}
	pals.Register(mine)
	if _, err := ParseExpression("ramp(prop.kind, mine)", WithPalettes(pals)); err != nil {
		t.Errorf("custom palette error = %v", err)
	}
	if _, err := ParseExpression("ramp(prop.kind, PRISM)", WithPalettes(pals)); types.CodeOf(err) != types.ErrSyntax {
		t.Errorf("palette outside the registry error = %v", err)
	}

	clock := expressions.Clock(func() time.Time { return time.Unix(90, 0) })
	now, err := ParseExpression("now()", WithClock(clock))
	if err != nil {
		t.Fatalf("ParseExpression() error = %v", err)
	}
	if v, _ := now.Eval(nil); v != 90.0 {
		t.Errorf("now() = %v, want 90", v)
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
