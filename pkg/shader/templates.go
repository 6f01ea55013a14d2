package shader

import "strings"

// Template is a style shader pair. The fragment source contains the
// $preface and $inline placeholders that Compile fills with the generated
// GLSL.
type Template struct {
	Name     string
	Vertex   string
	Fragment string
}

// Render substitutes preface and inline into the fragment source.
func (t Template) Render(preface, inline string) (vertex, fragment string) {
	r := strings.NewReplacer("$preface", preface, "$inline", inline)
	return t.Vertex, r.Replace(t.Fragment)
}

// styleVertex draws a full-screen quad over the style texture: one fragment
// per feature texel, with featureID the texel center.
const styleVertex = `precision highp float;
attribute vec2 vertex;
varying highp vec2 featureID;

void main(void) {
    featureID = vertex*0.5+vec2(0.5);
    gl_Position = vec4(vertex, 0.5, 1.0);
}
`

// ColorTemplate writes the color of each feature.
var ColorTemplate = Template{
	Name:   "color",
	Vertex: styleVertex,
	Fragment: `precision highp float;
varying highp vec2 featureID;

$preface

void main(void) {
    vec4 color = $inline;
    gl_FragColor = color;
}
`,
}

// WidthTemplate writes the encoded width of each feature in pixels. The
// encoding packs [0, 336] px into one byte: quarter pixel steps below 16 px,
// one pixel steps below 80 px, two pixel steps above.
var WidthTemplate = Template{
	Name:   "width",
	Vertex: styleVertex,
	Fragment: `precision highp float;
varying highp vec2 featureID;

float encodeWidth(float x){
    if (x<16.0){
        x = x*4.0;
    }else if (x<80.0){
        x = (x-16.0)+64.0;
    }else{
        x = (x-80.0)*0.5+128.0;
    }
    return clamp(x, 0.0, 255.0)/255.0;
}

$preface

void main(void) {
    float width = $inline;
    gl_FragColor = vec4(encodeWidth(width));
}
`,
}

// FilterTemplate writes the visibility of each feature in [0, 1].
var FilterTemplate = Template{
	Name:   "filter",
	Vertex: styleVertex,
	Fragment: `precision highp float;
varying highp vec2 featureID;

$preface

void main(void) {
    float filterValue = $inline;
    gl_FragColor = vec4(clamp(filterValue, 0.0, 1.0));
}
`,
}

// EncodeWidth is the host version of the width encoding, in [0, 1].
func EncodeWidth(x float64) float64 {
	switch {
	case x < 16:
		x *= 4
	case x < 80:
		x = (x - 16) + 64
	default:
		x = (x-80)*0.5 + 128
	}
	if x < 0 {
		x = 0
	} else if x > 255 {
		x = 255
	}
	return x / 255
}

// DecodeWidth inverts EncodeWidth for a texel byte.
func DecodeWidth(b byte) float64 {
	x := float64(b)
	switch {
	case x < 64:
		return x * 0.25
	case x < 128:
		return (x - 64) + 16
	}
	return (x-128)*2 + 80
}
