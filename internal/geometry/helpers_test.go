package geometry

import (
	"math"
	"testing"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

func square(x0, y0, x1, y1 float64) model.Ring {
	return model.Ring{{Lon: x0, Lat: y0}, {Lon: x1, Lat: y0}, {Lon: x1, Lat: y1}, {Lon: x0, Lat: y1}, {Lon: x0, Lat: y0}}
}

func reversed(r model.Ring) model.Ring {
	out := make(model.Ring, len(r))
	for i := range r {
		out[i] = r[len(r)-1-i]
	}
	return out
}

func mustRegion(t testing.TB, p Projector, polys ...model.Polygon) Region {
	t.Helper()
	reg, err := NewRegion(p, model.MultiPolygon(polys))
	if err != nil {
		t.Fatalf("NewRegion: %v", err)
	}
	return reg
}

func relEq(t *testing.T, got, want, rel float64) {
	t.Helper()
	if math.Abs(got-want) > rel*math.Max(math.Abs(want), 1) {
		t.Fatalf("got=%.12g want=%.12g (rel=%g)", got, want, rel)
	}
}
