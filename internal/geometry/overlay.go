package geometry

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

// Region is a projected multipolygon with even-odd membership.
type Region struct {
	rings  [][]Point
	signs  []float64
	bounds rect
}

var errEmptyRegion = errors.New("region has no usable rings")

// NewRegion projects mp with p. Rings with fewer than three vertices or
// non-finite coordinates are rejected.
func NewRegion(p Projector, mp model.MultiPolygon) (Region, error) {
	reg := Region{bounds: emptyRect()}
	for pi, poly := range mp {
		for ri, ring := range poly {
			pts := p.Ring(ring)
			if len(pts) < 3 {
				return Region{}, ringErr(InvalidRing, pi, ri, "ring has %d vertices", len(pts))
			}
			for _, pt := range pts {
				if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
					return Region{}, ringErr(InvalidRing, pi, ri, "non-finite coordinate")
				}
				reg.bounds = reg.bounds.add(pt)
			}
			sign := 1.0
			if ri > 0 {
				sign = -1
			}
			reg.rings = append(reg.rings, pts)
			reg.signs = append(reg.signs, sign)
		}
	}
	if len(reg.rings) == 0 {
		return Region{}, errEmptyRegion
	}
	return reg, nil
}

func (r Region) Contains(pt Point) bool {
	if !r.bounds.contains(pt) {
		return false
	}
	in := false
	for _, ring := range r.rings {
		if pointInRing(pt, ring) {
			in = !in
		}
	}
	return in
}

// Area is the planar area in square metres.
func (r Region) Area() float64 {
	var a float64
	for i, ring := range r.rings {
		a += r.signs[i] * math.Abs(signedArea(ring))
	}
	return math.Max(a, 0)
}

func (r Region) IsEmpty() bool { return len(r.rings) == 0 }

type edge struct{ a, b Point }

type pieceKey struct{ ax, ay, bx, by int64 }

const (
	offsetDistM = 1e-4
	keyGridM    = 1e-6
	ctxEvery    = 128
	minPieceLen = 1e-9
)

// OverlayArea returns the area of subject ∩ (clips[0] ∪ clips[1] ∪ ...) in
// square metres. Every boundary edge is split at its contacts with the
// other edges; a piece bounds the overlay when exactly one of its two sides
// lies inside it, and the area follows from the shoelace sum over those
// pieces oriented with the overlay on their left.
func OverlayArea(ctx context.Context, subject Region, clips ...Region) (float64, error) {
	if subject.IsEmpty() {
		return 0, nil
	}
	active := make([]Region, 0, len(clips))
	for _, c := range clips {
		if !c.IsEmpty() && c.bounds.intersects(subject.bounds) {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return 0, nil
	}

	member := func(p Point) bool {
		if !subject.Contains(p) {
			return false
		}
		for _, c := range active {
			if c.Contains(p) {
				return true
			}
		}
		return false
	}

	var edges []edge
	var tr rtree.RTreeG[int]
	addRegion := func(reg Region, filter bool) {
		for _, ring := range reg.rings {
			n := len(ring)
			for i := 0; i < n; i++ {
				a, b := ring[i], ring[(i+1)%n]
				if a == b {
					continue
				}
				bb := segRect(a, b)
				if filter && !bb.intersects(subject.bounds) {
					continue
				}
				tr.Insert([2]float64{bb.minX, bb.minY}, [2]float64{bb.maxX, bb.maxY}, len(edges))
				edges = append(edges, edge{a: a, b: b})
			}
		}
	}
	addRegion(subject, false)
	for _, c := range active {
		addRegion(c, true)
	}

	seen := make(map[pieceKey]struct{})
	var sum float64
	type split struct {
		t  float64
		at Point
	}
	var splits []split
	for i, e := range edges {
		if i%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		splits = splits[:0]
		splits = append(splits, split{0, e.a}, split{1, e.b})
		bb := segRect(e.a, e.b)
		tr.Search([2]float64{bb.minX, bb.minY}, [2]float64{bb.maxX, bb.maxY},
			func(_, _ [2]float64, j int) bool {
				if j == i {
					return true
				}
				o := edges[j]
				ts, pts := splitParams(e.a, e.b, o.a, o.b)
				for k := range ts {
					splits = append(splits, split{ts[k], pts[k]})
				}
				return true
			})
		sort.Slice(splits, func(x, y int) bool { return splits[x].t < splits[y].t })

		for k := 0; k+1 < len(splits); k++ {
			a, b := splits[k].at, splits[k+1].at
			dx, dy := b.X-a.X, b.Y-a.Y
			l := math.Hypot(dx, dy)
			if l < minPieceLen {
				continue
			}
			d := math.Min(offsetDistM, l/4)
			mid := Point{(a.X + b.X) / 2, (a.Y + b.Y) / 2}
			nx, ny := -dy/l*d, dx/l*d
			left := member(Point{mid.X + nx, mid.Y + ny})
			right := member(Point{mid.X - nx, mid.Y - ny})
			if left == right {
				continue
			}
			if right {
				a, b = b, a
			}
			key := pieceKey{grid(a.X), grid(a.Y), grid(b.X), grid(b.Y)}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			sum += a.X*b.Y - b.X*a.Y
		}
	}
	return math.Max(sum/2, 0), nil
}

func grid(v float64) int64 {
	return int64(math.Round(v / keyGridM))
}
