package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBBoxIntersects_TouchingEdgesCount(t *testing.T) {
	a := BBox{X1: 0, Y1: 0, X2: 1, Y2: 1}
	b := BBox{X1: 1, Y1: 0, X2: 2, Y2: 1}
	if !a.Intersects(b) {
		t.Fatalf("touching boxes should intersect")
	}
	c := BBox{X1: 1.0001, Y1: 0, X2: 2, Y2: 1}
	if a.Intersects(c) {
		t.Fatalf("disjoint boxes should not intersect")
	}
	if EmptyBBox().Intersects(a) {
		t.Fatalf("empty box must not intersect anything")
	}
}

func TestMultiPolygonBBox(t *testing.T) {
	mp := MultiPolygon{
		{{{0, 0}, {2, 0}, {2, 1}, {0, 0}}},
		{{{-1, 3}, {0, 3}, {0, 4}, {-1, 3}}},
	}
	got := mp.BBox()
	want := BBox{X1: -1, Y1: 0, X2: 2, Y2: 4}
	if got != want {
		t.Fatalf("got=%v want %v", got, want)
	}
}

func TestParseLayerKind_CaseInsensitive(t *testing.T) {
	cases := map[string]LayerKind{
		"SOIL":             LayerSoil,
		"Rainfall":         LayerRainfall,
		"crop_suitability": LayerCropSuitability,
		"crop":             LayerCropSuitability,
		" raster ":         LayerRaster,
	}
	for in, want := range cases {
		got, err := ParseLayerKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseLayerKind(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseLayerKind("elevation"); err == nil {
		t.Fatalf("expected error for unknown layer")
	}
}

func TestAttrValue_JSONKeepsKind(t *testing.T) {
	in := map[string]AttrValue{
		"ph":      Numeric(6.5),
		"texture": Text("loam"),
		"drought": Boolean(true),
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"drought":true,"ph":6.5,"texture":"loam"}` {
		t.Fatalf("unexpected json %s", b)
	}
	var out map[string]AttrValue
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := out["ph"].Num(); !ok || v != 6.5 {
		t.Fatalf("ph: got=%v ok=%v", v, ok)
	}
	if _, ok := out["texture"].Num(); ok {
		t.Fatalf("texture must not read as numeric")
	}
}

func TestAttrFromAny_RejectsNonFinite(t *testing.T) {
	if _, ok := AttrFromAny(json.Number("1e400")); ok {
		t.Fatalf("overflowing number should be rejected")
	}
	if _, ok := AttrFromAny([]int{1}); ok {
		t.Fatalf("slices are not attribute values")
	}
}

func TestSchemaCheck(t *testing.T) {
	s := DefaultSchemas[LayerSoil]
	if !s.Check("ph_level", Numeric(6)) {
		t.Fatalf("numeric ph should pass")
	}
	if s.Check("ph_level", Text("acidic")) {
		t.Fatalf("text ph should fail")
	}
	if !s.Check("custom_note", Text("x")) {
		t.Fatalf("undeclared attributes pass")
	}
}

func TestAreaReport_JSONLayerKeys(t *testing.T) {
	r := AreaReport{
		AOIID:        "id",
		Layers:       []AggregatedLayer{{Layer: LayerRainfall, CoveredFraction: 0.5}},
		GeneratedAt:  time.Unix(0, 0).UTC(),
		DataVersions: map[LayerKind]uint64{LayerSoil: 2, LayerRainfall: 1},
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back AreaReport
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.DataVersions[LayerSoil] != 2 || back.Layers[0].Layer != LayerRainfall {
		t.Fatalf("round trip lost data: %+v", back)
	}
	l, ok := back.Layer(LayerRainfall)
	if !ok || !l.Partial() {
		t.Fatalf("rainfall layer should be partial")
	}
}
