// Package composer assembles per-layer results into an area report.
package composer

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

type Input struct {
	AOI         model.AOI
	Requested   []model.LayerKind
	Layers      []model.AggregatedLayer
	Versions    map[model.LayerKind]uint64
	Generation  uint64
	GeneratedAt time.Time
}

func rank(k model.LayerKind) int {
	if i := slices.Index(model.AllLayers, k); i >= 0 {
		return i
	}
	return len(model.AllLayers) + int(k)
}

// Compose orders layers soil, rainfall, crop suitability, raster no matter
// the order they finished in, and keeps only requested kinds (all kinds when
// none are named). Duplicate kinds keep their first result.
func Compose(in Input) model.AreaReport {
	want := make(map[model.LayerKind]bool, len(in.Requested))
	for _, k := range in.Requested {
		want[k] = true
	}
	seen := make(map[model.LayerKind]bool, len(in.Layers))
	layers := make([]model.AggregatedLayer, 0, len(in.Layers))
	for _, l := range in.Layers {
		if (len(want) > 0 && !want[l.Layer]) || seen[l.Layer] {
			continue
		}
		seen[l.Layer] = true
		l.CoveredFraction = math.Max(0, math.Min(1, l.CoveredFraction))
		layers = append(layers, l)
	}
	slices.SortStableFunc(layers, func(a, b model.AggregatedLayer) int { return rank(a.Layer) - rank(b.Layer) })

	versions := make(map[model.LayerKind]uint64, len(layers))
	for _, l := range layers {
		versions[l.Layer] = in.Versions[l.Layer]
	}
	return model.AreaReport{
		AOIID:        in.AOI.ID,
		AOIKey:       in.AOI.Key,
		AOIAreaHa:    in.AOI.AreaHa(),
		Layers:       layers,
		GeneratedAt:  in.GeneratedAt.UTC(),
		DataVersions: versions,
		Generation:   in.Generation,
	}
}

// Validate checks the report invariants: canonical layer order, coverage
// fractions in [0,1] and every numeric value within its contributing range.
func Validate(r model.AreaReport) error {
	var errs []error
	for i, l := range r.Layers {
		if i > 0 && rank(r.Layers[i-1].Layer) >= rank(l.Layer) {
			errs = append(errs, fmt.Errorf("layer %s out of order", l.Layer))
		}
		if l.CoveredFraction < 0 || l.CoveredFraction > 1 || math.IsNaN(l.CoveredFraction) {
			errs = append(errs, fmt.Errorf("layer %s: covered fraction %g outside [0,1]", l.Layer, l.CoveredFraction))
		}
		for name, n := range l.Numeric {
			if n.Value < n.Min || n.Value > n.Max {
				errs = append(errs, fmt.Errorf("layer %s: %s value %g outside [%g,%g]", l.Layer, name, n.Value, n.Min, n.Max))
			}
		}
	}
	return errors.Join(errs...)
}
