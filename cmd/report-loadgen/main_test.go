package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestMakeAOIs_HotShareAndRange(t *testing.T) {
	aois := makeAOIs(40, 250, rand.New(rand.NewSource(1)))
	if len(aois) != 40 {
		t.Fatalf("len=%d want 40", len(aois))
	}
	for i, p := range aois {
		if p.RadiusM != 250 {
			t.Fatalf("aoi %d radius=%v", i, p.RadiusM)
		}
		if p.Lon < 11 || p.Lon > 19 || p.Lat < 55 || p.Lat > 61 {
			t.Fatalf("aoi %d out of range: %+v", i, p)
		}
	}
	if d := math.Abs(aois[0].Lon-13.40) + math.Abs(aois[0].Lat-55.75); d > 0.2 {
		t.Fatalf("first aoi should sit near the first hot center, got %+v", aois[0])
	}

	small := makeAOIs(3, 100, rand.New(rand.NewSource(1)))
	if len(small) != 3 {
		t.Fatalf("small pool len=%d want 3", len(small))
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	if _, err := loadConfig([]string{"-zipf-s", "1"}); err == nil {
		t.Fatal("expected error for zipf-s <= 1")
	}
	if _, err := loadConfig([]string{"-aois", "0"}); err == nil {
		t.Fatal("expected error for empty pool")
	}
	cfg, err := loadConfig([]string{"-layers", "soil, raster", "-seed", "7"})
	if err != nil {
		t.Fatal(err)
	}
	if got := splitLayers(cfg.Layers); len(got) != 2 || got[1] != "raster" || cfg.Seed != 7 {
		t.Fatalf("layers=%v seed=%d", got, cfg.Seed)
	}
}

func TestPercentile(t *testing.T) {
	v := []float64{1, 2, 3, 4, 5}
	cases := map[float64]float64{0: 1, 50: 3, 100: 5, 25: 2}
	for p, want := range cases {
		if got := percentile(v, p); got != want {
			t.Fatalf("p%v got=%v want %v", p, got, want)
		}
	}
	if !math.IsNaN(percentile(nil, 50)) {
		t.Fatal("empty input should be NaN")
	}
}

func TestDrive_PostsReportBodies(t *testing.T) {
	var hits, bad atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body requestBody
		if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&body) != nil || body.Point.RadiusM != 300 {
			bad.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"aoi_id":"x"}`))
	}))
	defer srv.Close()

	cfg := Config{TargetURL: srv.URL, Concurrency: 2, ZipfS: 1.3, ZipfV: 1}
	aois := makeAOIs(10, 300, rand.New(rand.NewSource(2)))
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	var csvOut bytes.Buffer
	col := drive(ctx, cfg, srv.Client(), aois, []string{"soil"}, 2, &csvOut)
	if err := col.flush(); err != nil {
		t.Fatal(err)
	}
	if bad.Load() != 0 {
		t.Fatalf("server saw %d malformed requests", bad.Load())
	}
	if col.success == 0 || col.byStatus["200"] != int(col.success) {
		t.Fatalf("success=%d by_status=%v", col.success, col.byStatus)
	}
	if !strings.HasPrefix(csvOut.String(), "timestamp,latency_ms,status,error,aoi_idx\n") {
		t.Fatalf("csv header missing: %q", csvOut.String()[:40])
	}
}
