package expressions

import (
	"github.com/sandrolain/goviz/pkg/types"
)

// Width refers to the width style property. It is only meaningful as the
// argument of asc() and desc().
type Width struct {
	composite
}

// NewWidth creates width().
func NewWidth() *Width { return &Width{} }

func (w *Width) Name() string                    { return "width" }
func (w *Width) Type() types.Type                { return types.TypePropertyReference }
func (w *Width) Compile(*types.Metadata) error   { return nil }
func (w *Width) Eval(types.Feature) (any, error) { return nil, errNoValue(w.Name()) }

func (w *Width) EmitShaderSource(*UniformIDs, PropertyResolver) (ShaderSource, error) {
	return ShaderSource{}, errNoValue(w.Name())
}

// Order is the evaluated value of an orderer.
type Order struct {
	// By is the style property features are sorted by; empty for noOrder.
	By         string
	Descending bool
}

// Orderer is asc(width()), desc(width()) or noOrder().
type Orderer struct {
	composite
	name  string
	order Order
}

func newOrderer(fn string, by any, descending bool) (*Orderer, error) {
	n, err := castArg(fn, "by", 0, by)
	if err != nil {
		return nil, err
	}
	if err := checkLooseType(fn, "by", 0, n, types.TypePropertyReference); err != nil {
		return nil, err
	}
	return &Orderer{
		composite: composite{children: []Child{{"by", n}}},
		name:      fn,
		order:     Order{By: "width", Descending: descending},
	}, nil
}

// NewAsc creates asc(by).
func NewAsc(by any) (*Orderer, error) { return newOrderer("asc", by, false) }

// NewDesc creates desc(by).
func NewDesc(by any) (*Orderer, error) { return newOrderer("desc", by, true) }

// NewNoOrder creates noOrder().
func NewNoOrder() *Orderer { return &Orderer{name: "noOrder"} }

func (o *Orderer) Name() string     { return o.name }
func (o *Orderer) Type() types.Type { return types.TypeOrderer }

// Order returns the ordering.
func (o *Orderer) Order() Order { return o.order }

func (o *Orderer) Eval(types.Feature) (any, error) { return o.order, nil }

func (o *Orderer) Compile(meta *types.Metadata) error {
	return o.compileChildren(meta)
}

func (o *Orderer) EmitShaderSource(*UniformIDs, PropertyResolver) (ShaderSource, error) {
	return ShaderSource{}, errNoValue(o.Name())
}

func errNoValue(fn string) error {
	return types.NewError(types.ErrInvalidParameterType, "expression has no shader value").WithExpr(fn)
}
