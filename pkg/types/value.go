package types

import (
	"fmt"
	"math"
)

// Feature is one feature record as seen by host evaluation: property name to
// the scalar stored in the dataframe. Category properties hold category IDs,
// date properties hold Unix seconds.
type Feature map[string]float64

// Color is an RGBA color. R, G and B are in [0, 255], A is in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// String formats the color as rgba(r, g, b, a).
func (c Color) String() string {
	return fmt.Sprintf("rgba(%g, %g, %g, %g)", c.R, c.G, c.B, c.A)
}

// Bytes returns the color as four bytes with alpha scaled to [0, 255].
func (c Color) Bytes() [4]byte {
	return [4]byte{clampByte(c.R), clampByte(c.G), clampByte(c.B), clampByte(c.A * 255)}
}

// Lerp interpolates between c and o, m in [0, 1].
func (c Color) Lerp(o Color, m float64) Color {
	return Color{
		R: c.R*(1-m) + o.R*m,
		G: c.G*(1-m) + o.G*m,
		B: c.B*(1-m) + o.B*m,
		A: c.A*(1-m) + o.A*m,
	}
}

// ColorFromBytes is the inverse of Color.Bytes.
func ColorFromBytes(b [4]byte) Color {
	return Color{R: float64(b[0]), G: float64(b[1]), B: float64(b[2]), A: float64(b[3]) / 255}
}

func clampByte(v float64) byte {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v)
}

// FadeValue is the evaluated value of a fade expression, in seconds.
type FadeValue struct {
	In  float64
	Out float64
}

// ParseHexColor parses #RGB, #RGBA, #RRGGBB and #RRGGBBAA colors.
func ParseHexColor(s string) (Color, error) {
	if len(s) == 0 || s[0] != '#' {
		return Color{}, Errorf(ErrInvalidHexColor, "invalid hex color %q: missing '#'", s)
	}
	digits := s[1:]
	var v [4]float64
	v[3] = 255
	switch len(digits) {
	case 3, 4:
		for i := 0; i < len(digits); i++ {
			d, ok := hexDigit(digits[i])
			if !ok {
				return Color{}, Errorf(ErrInvalidHexColor, "invalid hex color %q", s)
			}
			v[i] = float64(d*16 + d)
		}
	case 6, 8:
		for i := 0; i < len(digits); i += 2 {
			hi, ok1 := hexDigit(digits[i])
			lo, ok2 := hexDigit(digits[i+1])
			if !ok1 || !ok2 {
				return Color{}, Errorf(ErrInvalidHexColor, "invalid hex color %q", s)
			}
			v[i/2] = float64(hi*16 + lo)
		}
	default:
		return Color{}, Errorf(ErrInvalidHexColor, "invalid hex color %q: expected 3, 4, 6 or 8 digits", s)
	}
	return Color{R: v[0], G: v[1], B: v[2], A: v[3] / 255}, nil
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}
