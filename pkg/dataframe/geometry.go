package dataframe

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/sandrolain/goviz/pkg/types"
)

// GeometryType is the kind of geometry a dataframe holds.
type GeometryType string

const (
	Points   GeometryType = "point"
	Lines    GeometryType = "line"
	Polygons GeometryType = "polygon"
)

// Geometry is decoded, GPU ready geometry.
type Geometry struct {
	// Vertices holds x,y pairs. Lines and polygons are triangle lists.
	Vertices []float32
	// Normals holds one unit x,y normal per vertex. Lines only.
	Normals []float32
	// Breakpoints holds, per feature, the offset into Vertices where the
	// feature ends. Empty for points, where every vertex is a feature.
	Breakpoints []int
}

// NumFeatures returns the number of features.
func (g *Geometry) NumFeatures() int {
	if len(g.Breakpoints) > 0 {
		return len(g.Breakpoints)
	}
	return len(g.Vertices) / 2
}

// featureRange returns the Vertices offsets of feature i.
func (g *Geometry) featureRange(i int) (start, end int) {
	if len(g.Breakpoints) == 0 {
		return 2 * i, 2*i + 2
	}
	if i > 0 {
		start = g.Breakpoints[i-1]
	}
	return start, g.Breakpoints[i]
}

func (g *Geometry) vertex(off int) orb.Point {
	return orb.Point{float64(g.Vertices[off]), float64(g.Vertices[off+1])}
}

// Decode turns one geometry per feature into vertex data. Points must be
// orb.Point, lines orb.LineString or orb.MultiLineString, polygons orb.Polygon
// or orb.MultiPolygon.
func Decode(t GeometryType, geoms []orb.Geometry) (*Geometry, error) {
	g := &Geometry{}
	for i, geom := range geoms {
		var err error
		switch t {
		case Points:
			p, ok := geom.(orb.Point)
			if !ok {
				return nil, geometryError(t, i, geom)
			}
			g.Vertices = append(g.Vertices, float32(p[0]), float32(p[1]))
			continue
		case Lines:
			err = g.addLines(t, i, geom)
		case Polygons:
			err = g.addPolygons(t, i, geom)
		default:
			return nil, types.Errorf(types.ErrInvalidData, "unknown geometry type %q", t)
		}
		if err != nil {
			return nil, err
		}
		g.Breakpoints = append(g.Breakpoints, len(g.Vertices))
	}
	return g, nil
}

func geometryError(t GeometryType, i int, geom orb.Geometry) error {
	name := "nil"
	if geom != nil {
		name = geom.GeoJSONType()
	}
	return types.Errorf(types.ErrInvalidData, "feature %d: %s geometry in a %s dataframe", i, name, t)
}

func (g *Geometry) addLines(t GeometryType, i int, geom orb.Geometry) error {
	switch x := geom.(type) {
	case orb.LineString:
		g.addLineString(x)
	case orb.MultiLineString:
		for _, ls := range x {
			g.addLineString(ls)
		}
	default:
		return geometryError(t, i, geom)
	}
	return nil
}

// addLineString emits two triangles per segment. Each vertex carries the
// unit normal it is extruded along by the line width.
func (g *Geometry) addLineString(ls orb.LineString) {
	for k := 0; k+1 < len(ls); k++ {
		a, b := ls[k], ls[k+1]
		dx, dy := b[0]-a[0], b[1]-a[1]
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := float32(-dy/l), float32(dx/l)
		ax, ay, bx, by := float32(a[0]), float32(a[1]), float32(b[0]), float32(b[1])
		g.Vertices = append(g.Vertices,
			ax, ay, ax, ay, bx, by,
			bx, by, ax, ay, bx, by)
		g.Normals = append(g.Normals,
			nx, ny, -nx, -ny, nx, ny,
			nx, ny, -nx, -ny, -nx, -ny)
	}
}

func (g *Geometry) addPolygons(t GeometryType, i int, geom orb.Geometry) error {
	switch x := geom.(type) {
	case orb.Polygon:
		g.addPolygon(x)
	case orb.MultiPolygon:
		for _, p := range x {
			g.addPolygon(p)
		}
	default:
		return geometryError(t, i, geom)
	}
	return nil
}

// addPolygon triangulates a polygon. Holes are bridged into the outer ring
// before ear clipping.
func (g *Geometry) addPolygon(p orb.Polygon) {
	if len(p) == 0 {
		return
	}
	outer := cleanRing(p[0], orb.CCW)
	if len(outer) < 3 {
		return
	}
	holes := make([][]orb.Point, 0, len(p)-1)
	for _, r := range p[1:] {
		if h := cleanRing(r, orb.CW); len(h) >= 3 {
			holes = append(holes, h)
		}
	}
	for _, tri := range earClip(bridgeHoles(outer, holes)) {
		for _, v := range tri {
			g.Vertices = append(g.Vertices, float32(v[0]), float32(v[1]))
		}
	}
}

// cleanRing drops repeated and closing points and winds the ring in the
// given orientation.
func cleanRing(r orb.Ring, o orb.Orientation) []orb.Point {
	pts := make([]orb.Point, 0, len(r))
	for _, pt := range r {
		if len(pts) == 0 || pts[len(pts)-1] != pt {
			pts = append(pts, pt)
		}
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) >= 3 && orb.Ring(pts).Orientation() != o {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts
}

// bridgeHoles splices each hole into the ring through a segment from its
// rightmost vertex to the nearest ring vertex that crosses no edge. The
// result is a weakly simple ring. Holes with no such segment are dropped.
func bridgeHoles(ring []orb.Point, holes [][]orb.Point) []orb.Point {
	rightmost := func(h []orb.Point) int {
		m := 0
		for i, pt := range h {
			if pt[0] > h[m][0] {
				m = i
			}
		}
		return m
	}
	sort.SliceStable(holes, func(i, j int) bool {
		return holes[i][rightmost(holes[i])][0] > holes[j][rightmost(holes[j])][0]
	})
	for hi, h := range holes {
		m := rightmost(h)
		mp := h[m]
		best, bestDist := -1, math.Inf(1)
		for j, pt := range ring {
			d := planar.DistanceSquared(mp, pt)
			if d >= bestDist || crossesAny(mp, pt, ring) {
				continue
			}
			blocked := false
			for _, other := range holes[hi:] {
				if crossesAny(mp, pt, other) {
					blocked = true
					break
				}
			}
			if !blocked {
				best, bestDist = j, d
			}
		}
		if best < 0 {
			continue
		}
		merged := make([]orb.Point, 0, len(ring)+len(h)+2)
		merged = append(merged, ring[:best+1]...)
		merged = append(merged, h[m:]...)
		merged = append(merged, h[:m+1]...)
		merged = append(merged, ring[best:]...)
		ring = merged
	}
	return ring
}

// crossesAny reports whether segment ab properly crosses an edge of ring.
func crossesAny(a, b orb.Point, ring []orb.Point) bool {
	for i := range ring {
		c, d := ring[i], ring[(i+1)%len(ring)]
		if a == c || a == d || b == c || b == d {
			continue
		}
		d1, d2 := cross(a, b, c), cross(a, b, d)
		d3, d4 := cross(c, d, a), cross(c, d, b)
		if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
			return true
		}
	}
	return false
}

// earClip triangulates a counter-clockwise ring.
func earClip(pts []orb.Point) [][3]orb.Point {
	if len(pts) < 3 {
		return nil
	}
	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}
	tris := make([][3]orb.Point, 0, len(pts)-2)
	for len(idx) > 3 {
		clipped := false
		for k := range idx {
			a := pts[idx[(k+len(idx)-1)%len(idx)]]
			b := pts[idx[k]]
			c := pts[idx[(k+1)%len(idx)]]
			if cross(a, b, c) <= 0 || containsAny(pts, idx, a, b, c) {
				continue
			}
			tris = append(tris, [3]orb.Point{a, b, c})
			idx = append(idx[:k], idx[k+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Self intersecting or degenerate ring: keep what was clipped.
			return tris
		}
	}
	return append(tris, [3]orb.Point{pts[idx[0]], pts[idx[1]], pts[idx[2]]})
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// containsAny reports whether a remaining vertex other than the triangle's
// own lies in the triangle abc.
func containsAny(pts []orb.Point, idx []int, a, b, c orb.Point) bool {
	for _, i := range idx {
		p := pts[i]
		if p == a || p == b || p == c {
			continue
		}
		if pointInTriangle(p, a, b, c) {
			return true
		}
	}
	return false
}

// pointInTriangle reports whether p is inside the triangle or on one of its
// edges, by testing the three edge half planes.
func pointInTriangle(p, v1, v2, v3 orb.Point) bool {
	b1 := halfPlane(p, v1, v2) < 0
	b2 := halfPlane(p, v2, v3) < 0
	b3 := halfPlane(p, v3, v1) < 0
	return b1 == b2 && b2 == b3
}

func halfPlane(p, a, b orb.Point) float64 {
	return (p[0]-b[0])*(a[1]-b[1]) - (a[0]-b[0])*(p[1]-b[1])
}
