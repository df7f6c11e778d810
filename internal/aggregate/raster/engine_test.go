package raster

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/aggregate"
	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata"
)

func rect(x0, y0, x1, y1 float64) model.MultiPolygon {
	return model.MultiPolygon{{{{Lon: x0, Lat: y0}, {Lon: x1, Lat: y0}, {Lon: x1, Lat: y1}, {Lon: x0, Lat: y1}, {Lon: x0, Lat: y0}}}}
}

func unitAOI(t *testing.T) model.AOI {
	t.Helper()
	aoi, err := geometry.NormalizePolygons(rect(0, 0, 1, 1), geometry.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return aoi
}

func day(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

func scenes() []model.RasterFootprint {
	return []model.RasterFootprint{
		{ID: "s1", Product: "ndvi", AcquiredAt: day(1), Footprint: rect(-1, -1, 0.75, 2), Stats: model.RasterStats{Min: 0.1, Mean: 0.40, Max: 0.7}},
		{ID: "s2", Product: "ndvi", AcquiredAt: day(5), Footprint: rect(0.75, -1, 2, 2), Stats: model.RasterStats{Min: 0.3, Mean: 0.60, Max: 0.9}},
		{ID: "evi", Product: "evi", AcquiredAt: day(3), Footprint: rect(-1, -1, 2, 2), Stats: model.RasterStats{Min: 0, Mean: 0.1, Max: 0.2}},
		{ID: "old", Product: "ndvi", AcquiredAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Footprint: rect(-1, -1, 2, 2), Stats: model.RasterStats{Mean: 0.9}},
	}
}

func run(t *testing.T, opts aggregate.RasterOptions, fps ...model.RasterFootprint) model.AggregatedLayer {
	t.Helper()
	snap := refdata.NewSnapshot(1, "test", refdata.Dataset{Footprints: fps}, time.Unix(0, 0))
	out, err := New(nil).Aggregate(context.Background(), aggregate.Request{AOI: unitAOI(t), Layer: model.LayerRaster, Data: snap, Raster: opts})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	return out
}

func TestAggregate_BlendsByOverlapShare(t *testing.T) {
	out := run(t, aggregate.RasterOptions{Product: "ndvi", From: day(1), To: day(30)}, scenes()...)

	if got, want := out.Numeric["mean"].Value, 0.75*0.40+0.25*0.60; math.Abs(got-want) > 1e-9 {
		t.Fatalf("mean got=%.12f want %.12f", got, want)
	}
	if got, want := out.Numeric["max"].Value, 0.75*0.7+0.25*0.9; math.Abs(got-want) > 1e-9 {
		t.Fatalf("max got=%.12f want %.12f", got, want)
	}
	if out.ContributingFeatures != 2 {
		t.Fatalf("contributing got=%d want 2", out.ContributingFeatures)
	}
	if math.Abs(out.CoveredFraction-1) > 1e-9 {
		t.Fatalf("fraction got=%g", out.CoveredFraction)
	}
	if s, _ := out.Categorical["health_status"].Value.Str(); s != "Good" {
		t.Fatalf("health got=%q want Good", s)
	}
	if s, _ := out.Categorical["latest_acquisition"].Value.Str(); s != "2024-06-05" {
		t.Fatalf("latest got=%q", s)
	}
}

func TestAggregate_ProductFilter(t *testing.T) {
	out := run(t, aggregate.RasterOptions{Product: "evi"}, scenes()...)
	if out.ContributingFeatures != 1 {
		t.Fatalf("contributing got=%d want 1", out.ContributingFeatures)
	}
	if _, ok := out.Categorical["health_status"]; ok {
		t.Fatalf("health status applies to ndvi only")
	}
}

func TestAggregate_NoFootprints(t *testing.T) {
	out := run(t, aggregate.RasterOptions{Product: "ndvi", From: day(20)}, scenes()...)
	if out.ContributingFeatures != 0 || out.CoveredFraction != 0 || out.Numeric != nil {
		t.Fatalf("expected empty layer, got %+v", out)
	}
}

func TestAggregate_PartialFootprint(t *testing.T) {
	fp := model.RasterFootprint{ID: "p", Product: "ndvi", Footprint: rect(0.5, -1, 2, 2), Stats: model.RasterStats{Min: 0.2, Mean: 0.5, Max: 0.8}}
	out := run(t, aggregate.RasterOptions{}, fp)
	if math.Abs(out.CoveredFraction-0.5) > 1e-9 {
		t.Fatalf("fraction got=%g want 0.5", out.CoveredFraction)
	}
	if out.Numeric["mean"].Value != 0.5 {
		t.Fatalf("single footprint mean got=%g", out.Numeric["mean"].Value)
	}
}

func TestHealthStatus(t *testing.T) {
	cases := map[float64]string{0.1: "Poor", 0.2: "Fair", 0.39: "Fair", 0.45: "Good", 0.6: "Excellent", 0.95: "Excellent"}
	for in, want := range cases {
		if got := HealthStatus(in); got != want {
			t.Fatalf("HealthStatus(%g)=%q want %q", in, got, want)
		}
	}
}

func TestRasterOptions_Key(t *testing.T) {
	a := aggregate.RasterOptions{Product: "NDVI", From: day(1)}
	b := aggregate.RasterOptions{Product: "ndvi", From: day(1)}
	if a.Key() != b.Key() {
		t.Fatalf("product case must not change the key")
	}
	if a.Key() == (aggregate.RasterOptions{Product: "ndvi"}).Key() {
		t.Fatalf("window must change the key")
	}
}
