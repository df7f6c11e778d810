package filesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

const soilJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"soil-1","properties":{"ph_level":6.5,"soil_type":"loam"},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
 {"type":"Feature","id":7,"properties":{"ph_level":7.5,"drainage":"good"},
  "geometry":{"type":"MultiPolygon","coordinates":[[[[1,0],[2,0],[2,1],[1,1],[1,0]]]]}},
 {"type":"Feature","properties":{"ph_level":5},"geometry":{"type":"Point","coordinates":[0,0]}}
]}`

const rasterJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"s2-1","properties":{"product":"NDVI","acquired_at":"2024-03-01","min":0.1,"mean":0.4,"max":0.7,"locator":"s3://tiles/1.tif"},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}
]}`

func TestLoad_ReadsLayersFootprintsAndVersions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "soil.geojson", soilJSON)
	writeFile(t, dir, FootprintsFile, rasterJSON)
	writeFile(t, dir, VersionsFile, `{"soil": 4}`)

	ds, err := New(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Features) != 2 {
		t.Fatalf("features got=%d want 2", len(ds.Features))
	}
	if len(ds.Rejected) != 1 {
		t.Fatalf("point geometry should be rejected, got %v", ds.Rejected)
	}
	f := ds.Features[0]
	if f.ID != "soil-1" || f.Layer != model.LayerSoil || f.Source.Version != 4 {
		t.Fatalf("unexpected feature %+v", f)
	}
	if v, ok := f.Attrs["ph_level"].Num(); !ok || v != 6.5 {
		t.Fatalf("ph_level got=%v ok=%v", v, ok)
	}
	if s, ok := f.Attrs["soil_type"].Str(); !ok || s != "loam" {
		t.Fatalf("soil_type got=%q", s)
	}
	if ds.Features[1].ID != "7" {
		t.Fatalf("numeric ids should be kept as text, got %q", ds.Features[1].ID)
	}
	if ds.Versions[model.LayerSoil] != 4 || ds.Versions[model.LayerRaster] != 1 {
		t.Fatalf("versions got=%v", ds.Versions)
	}
	if _, ok := ds.Versions[model.LayerRainfall]; ok {
		t.Fatalf("missing rainfall file must not get a version")
	}

	if len(ds.Footprints) != 1 {
		t.Fatalf("footprints got=%d", len(ds.Footprints))
	}
	fp := ds.Footprints[0]
	if fp.Product != "ndvi" || fp.Stats.Mean != 0.4 || !fp.AcquiredAt.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected footprint %+v", fp)
	}
}

func TestLoad_EmptyDirectory(t *testing.T) {
	ds, err := New(t.TempDir()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Features) != 0 || len(ds.Footprints) != 0 {
		t.Fatalf("expected empty dataset")
	}
}

func TestLoad_BrokenFileFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rainfall.geojson", `{"type":"FeatureCollection","features":[`)
	if _, err := New(dir).Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
	writeFile(t, dir, "rainfall.geojson", `{"type":"Feature"}`)
	if _, err := New(dir).Load(context.Background()); err == nil {
		t.Fatalf("expected type error")
	}
}

func TestParseAcquired(t *testing.T) {
	if _, err := ParseAcquired("2024-03-01T10:00:00+02:00"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAcquired("March 1st"); err == nil {
		t.Fatalf("expected error")
	}
}
