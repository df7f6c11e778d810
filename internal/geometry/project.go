package geometry

import (
	"math"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

// EarthRadiusM is the authalic radius of the WGS84 ellipsoid.
const EarthRadiusM = 6371007.2

const degToRad = math.Pi / 180

// Point is a planar coordinate in metres.
type Point struct{ X, Y float64 }

// Projector maps lon/lat onto a Lambert cylindrical equal-area plane shifted
// so that origin lands on (0,0). Planar areas are true areas in square metres.
type Projector struct {
	lon0    float64
	sinLat0 float64
}

func NewProjector(origin model.Coord) Projector {
	return Projector{lon0: origin.Lon, sinLat0: math.Sin(origin.Lat * degToRad)}
}

func (p Projector) Project(c model.Coord) Point {
	return Point{
		X: EarthRadiusM * (c.Lon - p.lon0) * degToRad,
		Y: EarthRadiusM * (math.Sin(c.Lat*degToRad) - p.sinLat0),
	}
}

// Unproject is the inverse of Project.
func (p Projector) Unproject(pt Point) model.Coord {
	s := pt.Y/EarthRadiusM + p.sinLat0
	s = math.Max(-1, math.Min(1, s))
	return model.Coord{
		Lon: p.lon0 + pt.X/EarthRadiusM/degToRad,
		Lat: math.Asin(s) / degToRad,
	}
}

// Ring projects r and drops the closing vertex.
func (p Projector) Ring(r model.Ring) []Point {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	out := make([]Point, n)
	for i := 0; i < n; i++ {
		out[i] = p.Project(r[i])
	}
	return out
}

// RingAreaM2 is the unsigned area of a single ring.
func RingAreaM2(r model.Ring) float64 {
	if len(r) == 0 {
		return 0
	}
	p := NewProjector(r.BBox().Center())
	return math.Abs(signedArea(p.Ring(r)))
}

// AreaM2 sums shells and subtracts holes.
func AreaM2(mp model.MultiPolygon) float64 {
	var total float64
	for _, poly := range mp {
		for i, r := range poly {
			a := RingAreaM2(r)
			if i == 0 {
				total += a
			} else {
				total -= a
			}
		}
	}
	return total
}
