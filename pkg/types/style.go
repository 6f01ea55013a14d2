package types

// StyleProperty names a style property of a viz.
type StyleProperty string

// Style properties. All but StyleOrder are evaluated per feature into a
// style texture.
const (
	StyleColor       StyleProperty = "color"
	StyleWidth       StyleProperty = "width"
	StyleStrokeColor StyleProperty = "strokeColor"
	StyleStrokeWidth StyleProperty = "strokeWidth"
	StyleFilter      StyleProperty = "filter"
	StyleOrder       StyleProperty = "order"
)

// ShadedStyles lists the style properties that have a style texture, in
// draw order.
var ShadedStyles = []StyleProperty{StyleColor, StyleWidth, StyleStrokeColor, StyleStrokeWidth, StyleFilter}

// ParseStyleProperty validates a style property name.
func ParseStyleProperty(name string) (StyleProperty, bool) {
	switch p := StyleProperty(name); p {
	case StyleColor, StyleWidth, StyleStrokeColor, StyleStrokeWidth, StyleFilter, StyleOrder:
		return p, true
	}
	return "", false
}
