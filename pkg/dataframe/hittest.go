package dataframe

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/sandrolain/goviz/pkg/types"
)

const (
	// MaxPointDiameter caps the rendered diameter of a point, stroke included.
	MaxPointDiameter = 126
	// MaxLineWidth caps the rendered width of a line.
	MaxLineWidth = 336

	indexEpsilon = 1e-9
)

// StyleSource evaluates numeric styles for a feature. *viz.Viz implements it.
type StyleSource interface {
	Number(p types.StyleProperty, f types.Feature) (float64, error)
}

// Feature is a hit returned by GetFeaturesAtPosition.
type Feature struct {
	// Index is the position of the feature in the dataframe.
	Index int
	// ID is the cartodb_id property when present, else Index.
	ID any
	// Properties maps property names to numbers, or to category names for
	// category columns.
	Properties map[string]any
}

type indexedFeature struct {
	index  int
	bounds orb.Bound
}

func (f *indexedFeature) Bounds() rtreego.Rect {
	return boundRect(f.bounds)
}

func boundRect(b orb.Bound) rtreego.Rect {
	w := math.Max(b.Max[0]-b.Min[0], indexEpsilon)
	h := math.Max(b.Max[1]-b.Min[1], indexEpsilon)
	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
	return rect
}

// buildIndex indexes the raw feature bounds. Caller holds d.mu.
func (d *Dataframe) buildIndex() *rtreego.Rtree {
	if d.index != nil {
		return d.index
	}
	tree := rtreego.NewTree(2, 25, 50)
	for i := 0; i < d.numFeatures; i++ {
		start, end := d.geom.featureRange(i)
		if start == end {
			continue
		}
		b := orb.Bound{Min: d.geom.vertex(start), Max: d.geom.vertex(start)}
		for off := start + 2; off < end; off += 2 {
			b = b.Extend(d.geom.vertex(off))
		}
		tree.Insert(&indexedFeature{index: i, bounds: b})
	}
	d.index = tree
	return tree
}

// GetFeaturesAtPosition returns the features drawn at world position p,
// using s to size points and lines. Features whose filter is below 0.5 are
// not drawn and never hit.
func (d *Dataframe) GetFeaturesAtPosition(p orb.Point, s StyleSource) ([]Feature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freed {
		return nil, errFreed()
	}
	if d.renderer == nil {
		return nil, errNotBound()
	}
	q := orb.Point{(p[0] - d.center[0]) / d.scale, (p[1] - d.center[1]) / d.scale}
	widthScale := d.renderer.PixelSize() / d.scale

	var reach float64
	switch d.typ {
	case Points:
		reach = MaxPointDiameter / 2 * widthScale
	case Lines:
		reach = MaxLineWidth / 2 * widthScale
	}
	query := orb.Bound{
		Min: orb.Point{q[0] - reach, q[1] - reach},
		Max: orb.Point{q[0] + reach, q[1] + reach},
	}
	candidates := d.buildIndex().SearchIntersect(boundRect(query))
	indices := make([]int, 0, len(candidates))
	for _, c := range candidates {
		indices = append(indices, c.(*indexedFeature).index)
	}
	sort.Ints(indices)

	var hits []Feature
	for _, i := range indices {
		f := d.feature(i)
		filter, err := s.Number(types.StyleFilter, f)
		if err != nil {
			return nil, err
		}
		if filter < 0.5 {
			continue
		}
		hit, err := d.hit(i, q, f, s, widthScale)
		if err != nil {
			return nil, err
		}
		if hit {
			hits = append(hits, d.result(i, f))
		}
	}
	return hits, nil
}

func (d *Dataframe) hit(i int, q orb.Point, f types.Feature, s StyleSource, widthScale float64) (bool, error) {
	start, end := d.geom.featureRange(i)
	switch d.typ {
	case Points:
		width, err := s.Number(types.StyleWidth, f)
		if err != nil {
			return false, err
		}
		stroke, err := s.Number(types.StyleStrokeWidth, f)
		if err != nil {
			return false, err
		}
		r := math.Min(width+stroke, MaxPointDiameter) / 2 * widthScale
		v := d.geom.vertex(start)
		dx, dy := q[0]-v[0], q[1]-v[1]
		return dx*dx+dy*dy <= r*r, nil

	case Lines:
		width, err := s.Number(types.StyleWidth, f)
		if err != nil {
			return false, err
		}
		half := math.Min(width, MaxLineWidth) / 2 * widthScale
		extrude := func(off int) orb.Point {
			v := d.geom.vertex(off)
			return orb.Point{
				v[0] + float64(d.geom.Normals[off])*half,
				v[1] + float64(d.geom.Normals[off+1])*half,
			}
		}
		for off := start; off+6 <= end; off += 6 {
			if pointInTriangle(q, extrude(off), extrude(off+2), extrude(off+4)) {
				return true, nil
			}
		}
		return false, nil

	default:
		for off := start; off+6 <= end; off += 6 {
			if pointInTriangle(q, d.geom.vertex(off), d.geom.vertex(off+2), d.geom.vertex(off+4)) {
				return true, nil
			}
		}
		return false, nil
	}
}

func (d *Dataframe) result(i int, f types.Feature) Feature {
	props := make(map[string]any, len(f))
	for name, v := range f {
		props[name] = v
		if col, ok := d.meta.Column(name); ok && col.Type == types.TypeCategory {
			if cat, ok := d.meta.CategoryNames[int(v)]; ok {
				props[name] = cat
			}
		}
	}
	var id any = i
	if v, ok := f["cartodb_id"]; ok {
		id = v
	}
	return Feature{Index: i, ID: id, Properties: props}
}
