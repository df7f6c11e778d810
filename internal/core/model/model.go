// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
)

// BBox is an axis-aligned lon/lat rectangle (X is longitude, Y is latitude).
type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
}

// EmptyBBox returns an inverted box that any Extend call will replace.
func EmptyBBox() BBox {
	return BBox{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
}

func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.X1, b.Y1, b.X2, b.Y2)
}

func (b BBox) IsEmpty() bool {
	return !(b.X1 <= b.X2 && b.Y1 <= b.Y2)
}

// Intersects uses closed intervals, so boxes that only touch still intersect.
func (b BBox) Intersects(o BBox) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.X1 <= o.X2 && o.X1 <= b.X2 && b.Y1 <= o.Y2 && o.Y1 <= b.Y2
}

func (b BBox) Extend(c Coord) BBox {
	if math.IsNaN(c.Lon) || math.IsNaN(c.Lat) {
		return b
	}
	b.X1 = math.Min(b.X1, c.Lon)
	b.Y1 = math.Min(b.Y1, c.Lat)
	b.X2 = math.Max(b.X2, c.Lon)
	b.Y2 = math.Max(b.Y2, c.Lat)
	return b
}

func (b BBox) Union(o BBox) BBox {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return BBox{
		X1: math.Min(b.X1, o.X1), Y1: math.Min(b.Y1, o.Y1),
		X2: math.Max(b.X2, o.X2), Y2: math.Max(b.Y2, o.Y2),
	}
}

func (b BBox) Center() Coord {
	return Coord{Lon: (b.X1 + b.X2) / 2, Lat: (b.Y1 + b.Y2) / 2}
}

// Coord is a WGS84 longitude/latitude pair in degrees.
type Coord struct {
	Lon float64
	Lat float64
}

// Ring is a closed sequence of coordinates; the last vertex repeats the first.
type Ring []Coord

// Polygon is a shell followed by zero or more holes.
type Polygon []Ring

type MultiPolygon []Polygon

func (r Ring) BBox() BBox {
	bb := EmptyBBox()
	for _, c := range r {
		bb = bb.Extend(c)
	}
	return bb
}

func (mp MultiPolygon) BBox() BBox {
	bb := EmptyBBox()
	for _, p := range mp {
		for _, r := range p {
			bb = bb.Union(r.BBox())
		}
	}
	return bb
}

// Rings flattens the multipolygon into its rings in order.
func (mp MultiPolygon) Rings() []Ring {
	var out []Ring
	for _, p := range mp {
		out = append(out, p...)
	}
	return out
}

func (mp MultiPolygon) Clone() MultiPolygon {
	out := make(MultiPolygon, len(mp))
	for i, p := range mp {
		np := make(Polygon, len(p))
		for j, r := range p {
			np[j] = append(Ring(nil), r...)
		}
		out[i] = np
	}
	return out
}
