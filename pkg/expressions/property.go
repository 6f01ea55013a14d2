package expressions

import (
	"github.com/sandrolain/goviz/pkg/types"
)

// Property reads a feature property. Its type is only known after Compile.
type Property struct {
	composite
	name   string
	column *types.Column
}

// NewProperty creates a property reference.
func NewProperty(name string) (*Property, error) {
	if name == "" {
		return nil, types.NewError(types.ErrInvalidParameter, "invalid first parameter 'name'\n\tname is empty").WithExpr("property")
	}
	return &Property{name: name}, nil
}

func (p *Property) Name() string { return "property" }

// PropertyName returns the referenced property name.
func (p *Property) PropertyName() string { return p.name }

func (p *Property) Type() types.Type {
	if p.column == nil {
		return types.TypeUnknown
	}
	return p.column.Type
}

// Column returns the metadata column the property was compiled against.
func (p *Property) Column() (*types.Column, bool) {
	return p.column, p.column != nil
}

// NumCategories is the number of distinct categories of a compiled category
// property.
func (p *Property) NumCategories() (int, bool) {
	if p.column == nil || p.column.Type != types.TypeCategory {
		return 0, false
	}
	return len(p.column.CategoryNames), true
}

// OthersBucket is always false for a bare property.
func (p *Property) OthersBucket() bool { return false }

func (p *Property) Eval(f types.Feature) (any, error) {
	if p.column == nil {
		return nil, errNotCompiled(p.Name())
	}
	v, ok := f[p.name]
	if !ok {
		return nil, types.Errorf(types.ErrUnknownProperty, "feature has no property %q", p.name).WithExpr(p.Name())
	}
	if p.column.Type == types.TypeDate {
		return fromUnixSeconds(v), nil
	}
	return v, nil
}

func (p *Property) Compile(meta *types.Metadata) error {
	c, ok := meta.Column(p.name)
	if !ok {
		return types.Errorf(types.ErrUnknownProperty, "property %q does not exist", p.name).WithExpr(p.Name())
	}
	p.column = c
	return nil
}

func (p *Property) EmitShaderSource(_ *UniformIDs, prop PropertyResolver) (ShaderSource, error) {
	return ShaderSource{Inline: prop(p.name)}, nil
}

// stat selects a column statistic.
type stat int

const (
	statMin stat = iota
	statMax
	statAvg
)

var statNames = map[stat]string{statMin: "globalMin", statMax: "globalMax", statAvg: "globalAvg"}

// GlobalStat is a dataset-wide statistic of a property taken from metadata.
// It has the type of the property: number, or date for date properties.
type GlobalStat struct {
	composite
	kind     stat
	property *Property
	value    float64
	typ      types.Type
}

func newGlobalStat(kind stat, property any) (*GlobalStat, error) {
	fn := statNames[kind]
	p, ok := property.(*Property)
	if !ok {
		return nil, types.Errorf(types.ErrInvalidParameter, "invalid first parameter 'property'\n\texpected a property reference, got %T", property).WithExpr(fn)
	}
	return &GlobalStat{
		composite: composite{children: []Child{{"property", p}}},
		kind:      kind,
		property:  p,
	}, nil
}

// NewGlobalMin creates globalMin(property).
func NewGlobalMin(property any) (*GlobalStat, error) { return newGlobalStat(statMin, property) }

// NewGlobalMax creates globalMax(property).
func NewGlobalMax(property any) (*GlobalStat, error) { return newGlobalStat(statMax, property) }

// NewGlobalAvg creates globalAvg(property).
func NewGlobalAvg(property any) (*GlobalStat, error) { return newGlobalStat(statAvg, property) }

func (g *GlobalStat) Name() string     { return statNames[g.kind] }
func (g *GlobalStat) Type() types.Type { return g.typ }

func (g *GlobalStat) Compile(meta *types.Metadata) error {
	if err := g.compileChildren(meta); err != nil {
		return err
	}
	if err := checkType(g.Name(), "property", 0, g.property, types.TypeNumber, types.TypeDate); err != nil {
		return err
	}
	c := g.property.column
	var v float64
	switch g.kind {
	case statMin:
		v = c.Min
	case statMax:
		v = c.Max
	default:
		v = c.Avg
	}
	g.value, g.typ = v, c.Type
	return nil
}

func (g *GlobalStat) Eval(types.Feature) (any, error) {
	switch g.typ {
	case types.TypeUnknown:
		return nil, errNotCompiled(g.Name())
	case types.TypeDate:
		return fromUnixSeconds(g.value), nil
	}
	return g.value, nil
}

func (g *GlobalStat) EmitShaderSource(*UniformIDs, PropertyResolver) (ShaderSource, error) {
	if g.typ == types.TypeUnknown {
		return ShaderSource{}, errNotCompiled(g.Name())
	}
	return ShaderSource{Inline: glslFloat(g.value)}, nil
}
