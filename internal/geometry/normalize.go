package geometry

import (
	"math"

	"github.com/tidwall/rtree"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

type Options struct {
	// CloseTolerance is the largest first/last vertex gap, in degrees, that
	// is treated as an already closed ring.
	CloseTolerance float64
	// AutoCloseAny closes rings whose gap exceeds CloseTolerance instead of
	// rejecting them. Off unless the caller knows the input comes from a
	// drawing tool that omits the closing vertex.
	AutoCloseAny bool
	MinAreaM2    float64
}

func DefaultOptions() Options {
	return Options{CloseTolerance: 1e-9, MinAreaM2: 1}
}

// Normalize validates a flat ring list and returns the canonical AOI. Rings
// whose first vertex lies inside an earlier ring become holes of it.
func Normalize(rings []model.Ring, opt Options) (model.AOI, error) {
	return NormalizePolygons(GroupRings(rings), opt)
}

// GroupRings assigns each ring either as a new shell or as a hole of the
// first earlier shell containing its first vertex.
func GroupRings(rings []model.Ring) model.MultiPolygon {
	var mp model.MultiPolygon
	for _, r := range rings {
		placed := false
		if len(r) > 0 {
			v := Point{r[0].Lon, r[0].Lat}
			for i := range mp {
				if pointInRing(v, planarRing(mp[i][0])) {
					mp[i] = append(mp[i], r)
					placed = true
					break
				}
			}
		}
		if !placed {
			mp = append(mp, model.Polygon{r})
		}
	}
	return mp
}

func NormalizePolygons(mp model.MultiPolygon, opt Options) (model.AOI, error) {
	if opt.CloseTolerance <= 0 {
		opt.CloseTolerance = DefaultOptions().CloseTolerance
	}
	if len(mp) == 0 {
		return model.AOI{}, &GeometryError{Kind: InvalidRing, Polygon: -1, Ring: -1, Detail: "no rings"}
	}
	out := make(model.MultiPolygon, 0, len(mp))
	for pi, poly := range mp {
		if len(poly) == 0 {
			return model.AOI{}, ringErr(InvalidRing, pi, 0, "polygon has no shell")
		}
		np := make(model.Polygon, 0, len(poly))
		for ri, ring := range poly {
			r, err := normalizeRing(ring, pi, ri, opt)
			if err != nil {
				return model.AOI{}, err
			}
			np = append(np, r)
		}
		shell := planarRing(np[0])
		for ri := 1; ri < len(np); ri++ {
			for _, c := range np[ri][:len(np[ri])-1] {
				if !pointInRing(Point{c.Lon, c.Lat}, shell) && !onRing(Point{c.Lon, c.Lat}, shell) {
					return model.AOI{}, ringErr(InvalidRing, pi, ri, "hole vertex outside shell")
				}
			}
		}
		out = append(out, np)
	}
	if err := checkRingsDisjoint(out); err != nil {
		return model.AOI{}, err
	}
	if err := checkPolygonsDisjoint(out); err != nil {
		return model.AOI{}, err
	}

	area := AreaM2(out)
	if area < opt.MinAreaM2 {
		return model.AOI{}, &GeometryError{Kind: DegenerateArea, Polygon: -1, Ring: -1, Detail: "area is effectively zero"}
	}

	canon := Canonicalize(out)
	key := Key(canon)
	return model.AOI{
		ID:       AOIID(key),
		Key:      key,
		Polygons: canon,
		BBox:     canon.BBox(),
		AreaM2:   area,
	}, nil
}

func normalizeRing(ring model.Ring, pi, ri int, opt Options) (model.Ring, error) {
	for _, c := range ring {
		if math.IsNaN(c.Lon) || math.IsNaN(c.Lat) || math.IsInf(c.Lon, 0) || math.IsInf(c.Lat, 0) {
			return nil, ringErr(InvalidRing, pi, ri, "non-finite coordinate")
		}
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return nil, ringErr(OutOfBounds, pi, ri, "coordinate (%g, %g) outside WGS84 range", c.Lon, c.Lat)
		}
	}
	if len(ring) == 0 {
		return nil, ringErr(InvalidRing, pi, ri, "empty ring")
	}

	open := make(model.Ring, 0, len(ring))
	for _, c := range ring {
		if len(open) > 0 && open[len(open)-1] == c {
			continue
		}
		open = append(open, c)
	}
	if n := len(open); n > 1 {
		first, last := open[0], open[n-1]
		gap := math.Max(math.Abs(first.Lon-last.Lon), math.Abs(first.Lat-last.Lat))
		switch {
		case gap <= opt.CloseTolerance:
			open = open[:n-1]
		case !opt.AutoCloseAny:
			return nil, ringErr(InvalidRing, pi, ri, "ring is not closed")
		}
	}
	if len(open) < 3 {
		return nil, ringErr(InvalidRing, pi, ri, "ring has %d distinct vertices, need 3", len(open))
	}

	if collinear(planarRing(open)) {
		return nil, ringErr(DegenerateArea, pi, ri, "all vertices are collinear")
	}
	if err := checkSimple(open, pi, ri); err != nil {
		return nil, err
	}
	closed := append(open, open[0])
	if RingAreaM2(closed) < opt.MinAreaM2 {
		return nil, ringErr(DegenerateArea, pi, ri, "ring area is effectively zero")
	}

	ccw := signedArea(planarRing(closed)) > 0
	if (ri == 0) != ccw {
		for i, j := 0, len(open)-1; i < j; i, j = i+1, j-1 {
			open[i], open[j] = open[j], open[i]
		}
		closed = append(open, open[0])
	}
	return closed, nil
}

func collinear(pts []Point) bool {
	ext := emptyRect()
	for _, p := range pts {
		ext = ext.add(p)
	}
	span := math.Max(ext.maxX-ext.minX, ext.maxY-ext.minY)
	tol := 1e-15 * span * span
	for i := 2; i < len(pts); i++ {
		if math.Abs(cross(pts[0], pts[1], pts[i])) > tol {
			return false
		}
	}
	return true
}

// planarRing treats lon/lat as plane coordinates and drops the closing vertex.
func planarRing(r model.Ring) []Point {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	out := make([]Point, n)
	for i := 0; i < n; i++ {
		out[i] = Point{r[i].Lon, r[i].Lat}
	}
	return out
}

func onRing(p Point, ring []Point) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		if cross(a, b, p) == 0 && onSegment(a, b, p) {
			return true
		}
	}
	return false
}

// checkSimple rejects rings where non-adjacent edges touch or adjacent edges
// fold back over each other. open has no closing vertex.
func checkSimple(open model.Ring, pi, ri int) error {
	pts := planarRing(open)
	n := len(pts)
	var tr rtree.RTreeG[int]
	for i := 0; i < n; i++ {
		bb := segRect(pts[i], pts[(i+1)%n])
		tr.Insert([2]float64{bb.minX, bb.minY}, [2]float64{bb.maxX, bb.maxY}, i)
	}
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		c := pts[(i+2)%n]
		if cross(a, b, c) == 0 && (b.X-a.X)*(c.X-b.X)+(b.Y-a.Y)*(c.Y-b.Y) < 0 {
			return ringErr(SelfIntersecting, pi, ri, "ring folds back at vertex %d", (i+1)%n)
		}
		bb := segRect(a, b)
		var hit = -1
		tr.Search([2]float64{bb.minX, bb.minY}, [2]float64{bb.maxX, bb.maxY}, func(_, _ [2]float64, j int) bool {
			if j == i || j == (i+1)%n || i == (j+1)%n {
				return true
			}
			if segmentsTouch(a, b, pts[j], pts[(j+1)%n]) {
				hit = j
				return false
			}
			return true
		})
		if hit >= 0 {
			return ringErr(SelfIntersecting, pi, ri, "edges %d and %d intersect", i, hit)
		}
	}
	return nil
}

// checkRingsDisjoint rejects proper crossings between different rings.
// Rings may still touch at single points.
func checkRingsDisjoint(mp model.MultiPolygon) error {
	type ref struct{ poly, ring, edge int }
	var refs []ref
	var segs [][2]Point
	var tr rtree.RTreeG[int]
	rid := 0
	ringIDs := []int{}
	for pi, poly := range mp {
		for ri, r := range poly {
			pts := planarRing(r)
			for i := range pts {
				a, b := pts[i], pts[(i+1)%len(pts)]
				bb := segRect(a, b)
				tr.Insert([2]float64{bb.minX, bb.minY}, [2]float64{bb.maxX, bb.maxY}, len(segs))
				segs = append(segs, [2]Point{a, b})
				refs = append(refs, ref{pi, ri, i})
				ringIDs = append(ringIDs, rid)
			}
			rid++
		}
	}
	for i, s := range segs {
		bb := segRect(s[0], s[1])
		var bad = -1
		tr.Search([2]float64{bb.minX, bb.minY}, [2]float64{bb.maxX, bb.maxY}, func(_, _ [2]float64, j int) bool {
			if ringIDs[j] == ringIDs[i] {
				return true
			}
			if properCross(s[0], s[1], segs[j][0], segs[j][1]) {
				bad = j
				return false
			}
			return true
		})
		if bad >= 0 {
			return ringErr(InvalidRing, refs[i].poly, refs[i].ring, "ring crosses polygon %d ring %d", refs[bad].poly, refs[bad].ring)
		}
	}
	return nil
}

func properCross(a, b, c, d Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// checkPolygonsDisjoint rejects shells that sit inside another polygon's
// interior, which would count the overlap twice.
func checkPolygonsDisjoint(mp model.MultiPolygon) error {
	if len(mp) < 2 {
		return nil
	}
	planar := make([][][]Point, len(mp))
	for i, poly := range mp {
		for _, r := range poly {
			planar[i] = append(planar[i], planarRing(r))
		}
	}
	inside := func(p Point, rings [][]Point) bool {
		in := false
		for _, r := range rings {
			if onRing(p, r) {
				return false
			}
			if pointInRing(p, r) {
				in = !in
			}
		}
		return in
	}
	for i := range planar {
		for j := range planar {
			if i == j {
				continue
			}
			samples := append([]Point{interiorSample(planar[j][0])}, planar[j][0]...)
			for _, v := range samples {
				if inside(v, planar[i]) {
					return ringErr(InvalidRing, j, 0, "shell overlaps polygon %d", i)
				}
			}
		}
	}
	return nil
}

// interiorSample returns a point just left of the first edge of a
// counter-clockwise ring.
func interiorSample(ring []Point) Point {
	a, b := ring[0], ring[1]
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	d := l * 1e-6
	return Point{(a.X+b.X)/2 - dy/l*d, (a.Y+b.Y)/2 + dx/l*d}
}
