package geometry

import (
	"math"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

const (
	DefaultBufferRadiusM  = 1000
	DefaultBufferSegments = 64
)

// PointBuffer approximates a circle of radiusM metres around center on the
// sphere. The ring is closed and counter-clockwise.
func PointBuffer(center model.Coord, radiusM float64, segments int) (model.Ring, error) {
	if radiusM <= 0 {
		radiusM = DefaultBufferRadiusM
	}
	if segments < 3 {
		segments = DefaultBufferSegments
	}
	if center.Lat < -90 || center.Lat > 90 || center.Lon < -180 || center.Lon > 180 {
		return nil, &GeometryError{Kind: OutOfBounds, Polygon: -1, Ring: -1, Detail: "buffer center outside WGS84 range"}
	}
	lat1 := center.Lat * degToRad
	lon1 := center.Lon * degToRad
	delta := radiusM / EarthRadiusM

	ring := make(model.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		// bearings run anticlockwise starting due east
		brng := math.Pi/2 - 2*math.Pi*float64(i)/float64(segments)
		lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(brng))
		lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))
		c := model.Coord{Lon: lon2 / degToRad, Lat: lat2 / degToRad}
		if c.Lon < -180 || c.Lon > 180 {
			return nil, &GeometryError{Kind: OutOfBounds, Polygon: -1, Ring: -1, Detail: "buffer crosses the antimeridian"}
		}
		ring = append(ring, c)
	}
	return append(ring, ring[0]), nil
}
