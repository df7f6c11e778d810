package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

func TestFromGeoJSON_Shapes(t *testing.T) {
	cases := map[string]string{
		"polygon":      `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`,
		"multipolygon": `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]]]}`,
		"feature":      `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}`,
		"collection": `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[5,5]}},
			{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			mp, err := FromGeoJSON([]byte(raw))
			if err != nil {
				t.Fatalf("FromGeoJSON: %v", err)
			}
			if len(mp) != 1 || len(mp[0]) != 1 || len(mp[0][0]) != 5 {
				t.Fatalf("unexpected shape %v", mp)
			}
		})
	}
}

func TestFromGeoJSON_RejectsNonPolygonal(t *testing.T) {
	_, err := FromGeoJSON([]byte(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`))
	if !errors.Is(err, ErrNotPolygonal) {
		t.Fatalf("want ErrNotPolygonal, got %v", err)
	}
	if _, err := FromGeoJSON([]byte(`{"type":`)); err == nil {
		t.Fatalf("broken json should fail")
	}
}

func TestGeoJSON_RoundTripKeepsCanonicalRings(t *testing.T) {
	in := []model.Ring{
		{{Lon: 36.81, Lat: -1.29}, {Lon: 36.79, Lat: -1.27}, {Lon: 36.83, Lat: -1.25}, {Lon: 36.85, Lat: -1.28}, {Lon: 36.81, Lat: -1.29}},
		{{Lon: 36.815, Lat: -1.275}, {Lon: 36.825, Lat: -1.27}, {Lon: 36.82, Lat: -1.265}, {Lon: 36.815, Lat: -1.275}},
	}
	first, err := Normalize(in, DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	g, err := ToGeom(first.Polygons)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := geojson.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	mp, err := FromGeoJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NormalizePolygons(mp, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if first.Key != second.Key {
		t.Fatalf("key changed across round trip: %s vs %s", first.Key, second.Key)
	}
	a, b := first.Polygons.Rings(), second.Polygons.Rings()
	if len(a) != len(b) {
		t.Fatalf("ring count got=%d want %d", len(b), len(a))
	}
	for i := range a {
		for j := range a[i] {
			if math.Abs(a[i][j].Lon-b[i][j].Lon) > 1e-12 || math.Abs(a[i][j].Lat-b[i][j].Lat) > 1e-12 {
				t.Fatalf("ring %d vertex %d got=%v want %v", i, j, b[i][j], a[i][j])
			}
		}
	}
}
