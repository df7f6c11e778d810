package geometry

import "math"

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// signedArea is positive for counter-clockwise rings. pts is open.
func signedArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var s float64
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		s += a.X*b.Y - b.X*a.Y
	}
	return s / 2
}

// pointInRing is an even-odd test with half-open edges, so a point is never
// counted by both sides of a shared vertex.
func pointInRing(p Point, ring []Point) bool {
	in := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				in = !in
			}
		}
	}
	return in
}

type rect struct{ minX, minY, maxX, maxY float64 }

func emptyRect() rect {
	return rect{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
}

func (r rect) add(p Point) rect {
	return rect{math.Min(r.minX, p.X), math.Min(r.minY, p.Y), math.Max(r.maxX, p.X), math.Max(r.maxY, p.Y)}
}

func (r rect) union(o rect) rect {
	return rect{math.Min(r.minX, o.minX), math.Min(r.minY, o.minY), math.Max(r.maxX, o.maxX), math.Max(r.maxY, o.maxY)}
}

func (r rect) intersects(o rect) bool {
	return r.minX <= o.maxX && o.minX <= r.maxX && r.minY <= o.maxY && o.minY <= r.maxY
}

func (r rect) contains(p Point) bool {
	return p.X >= r.minX && p.X <= r.maxX && p.Y >= r.minY && p.Y <= r.maxY
}

func segRect(a, b Point) rect {
	return emptyRect().add(a).add(b)
}

// splitParams returns the parameters along a->b (strictly inside (0,1)) at
// which c->d touches it, together with the touching points. Collinear
// overlaps report the exact endpoints of c->d.
func splitParams(a, b, c, d Point) ([]float64, []Point) {
	r := Point{b.X - a.X, b.Y - a.Y}
	s := Point{d.X - c.X, d.Y - c.Y}
	rr := r.X*r.X + r.Y*r.Y
	ss := s.X*s.X + s.Y*s.Y
	if rr == 0 || ss == 0 {
		return nil, nil
	}
	den := r.X*s.Y - r.Y*s.X
	qp := Point{c.X - a.X, c.Y - a.Y}
	if math.Abs(den) > parallelEps*math.Sqrt(rr*ss) {
		t := (qp.X*s.Y - qp.Y*s.X) / den
		u := (qp.X*r.Y - qp.Y*r.X) / den
		if u < -paramEps || u > 1+paramEps || t <= paramEps || t >= 1-paramEps {
			return nil, nil
		}
		var at Point
		switch {
		case math.Abs(u) <= paramEps:
			at = c
		case math.Abs(u-1) <= paramEps:
			at = d
		default:
			at = Point{a.X + t*r.X, a.Y + t*r.Y}
		}
		return []float64{t}, []Point{at}
	}
	// parallel: only collinear overlaps split
	if math.Abs(qp.X*r.Y-qp.Y*r.X)/math.Sqrt(rr) > collinearTolM {
		return nil, nil
	}
	var ts []float64
	var pts []Point
	for _, q := range [2]Point{c, d} {
		t := ((q.X-a.X)*r.X + (q.Y-a.Y)*r.Y) / rr
		if t > paramEps && t < 1-paramEps {
			ts = append(ts, t)
			pts = append(pts, q)
		}
	}
	return ts, pts
}

// segmentsTouch reports any contact between the closed segments a-b and c-d.
func segmentsTouch(a, b, c, d Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(c, d, a)) ||
		(d2 == 0 && onSegment(c, d, b)) ||
		(d3 == 0 && onSegment(a, b, c)) ||
		(d4 == 0 && onSegment(a, b, d))
}

func onSegment(a, b, p Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

const (
	parallelEps   = 1e-12
	paramEps      = 1e-12
	collinearTolM = 1e-6
)
