// Package raster approximates zonal statistics from raster scene footprints.
// Each footprint's stored min/mean/max is blended by its share of the total
// overlap with the AOI; pixels are never read.
package raster

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/aggregate"
	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/core/observability"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
)

const ProductNDVI = "ndvi"

type Engine struct {
	logger *slog.Logger
}

var _ aggregate.Interface = (*Engine)(nil)

func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

type overlap struct {
	fp *model.RasterFootprint
	m2 float64
}

func (e *Engine) Aggregate(ctx context.Context, req aggregate.Request) (out model.AggregatedLayer, err error) {
	start := time.Now()
	layer := model.LayerRaster.String()
	defer func() { observability.ObserveLayer(layer, err, time.Since(start)) }()

	ws, err := aggregate.NewWorkspace(req.AOI)
	if err != nil {
		return model.AggregatedLayer{}, err
	}
	ids := req.Data.FootprintCandidates(req.AOI.BBox)
	observability.ObserveCandidates(layer, len(ids))

	out = model.AggregatedLayer{Layer: model.LayerRaster}
	var hits []overlap
	var regions []geometry.Region
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return model.AggregatedLayer{}, err
		}
		fp, ok := req.Data.Footprint(id)
		if !ok || !req.Raster.Match(fp) {
			continue
		}
		reg, err := geometry.NewRegion(ws.Proj, fp.Footprint)
		if err != nil {
			out.Warnings = append(out.Warnings, model.Warning{Kind: model.WarnCandidateGeometry, FeatureID: id, Detail: err.Error()})
			continue
		}
		a, err := geometry.OverlayArea(ctx, ws.AOI, reg)
		if err != nil {
			if ctx.Err() != nil {
				return model.AggregatedLayer{}, ctx.Err()
			}
			out.Warnings = append(out.Warnings, model.Warning{Kind: model.WarnCandidateGeometry, FeatureID: id, Detail: err.Error()})
			continue
		}
		if a < aggregate.MinOverlapM2 {
			continue
		}
		hits = append(hits, overlap{fp: fp, m2: a})
		regions = append(regions, reg)
	}
	for _, w := range out.Warnings {
		e.logger.Warn("footprint skipped", "feature_id", w.FeatureID, "detail", w.Detail)
	}
	observability.AddLayerWarnings(layer, string(model.WarnCandidateGeometry), len(out.Warnings))
	if len(hits) == 0 {
		return out, nil
	}

	covered, err := geometry.OverlayArea(ctx, ws.AOI, regions...)
	if err != nil {
		return model.AggregatedLayer{}, err
	}
	out.ContributingFeatures = len(hits)
	out.CoveredAreaHa = aggregate.ToHa(covered)
	out.CoveredFraction = aggregate.Fraction(covered, ws.AreaM2)
	out.Numeric, out.Categorical = blend(hits)
	return out, nil
}

func blend(hits []overlap) (map[string]model.NumericAggregate, map[string]model.CategoricalAggregate) {
	var total float64
	for _, h := range hits {
		total += h.m2
	}
	stat := func(pick func(model.RasterStats) float64) model.NumericAggregate {
		agg := model.NumericAggregate{Min: math.Inf(1), Max: math.Inf(-1), WeightHa: aggregate.ToHa(total), Features: len(hits)}
		for _, h := range hits {
			v := pick(h.fp.Stats)
			agg.Value += h.m2 / total * v
			agg.Min = math.Min(agg.Min, v)
			agg.Max = math.Max(agg.Max, v)
		}
		agg.Value = math.Max(agg.Min, math.Min(agg.Max, agg.Value))
		return agg
	}
	numeric := map[string]model.NumericAggregate{
		"min":  stat(func(s model.RasterStats) float64 { return s.Min }),
		"mean": stat(func(s model.RasterStats) float64 { return s.Mean }),
		"max":  stat(func(s model.RasterStats) float64 { return s.Max }),
	}

	categorical := make(map[string]model.CategoricalAggregate)
	byProduct := make(map[string]float64)
	latest := hits[0].fp
	for _, h := range hits {
		byProduct[h.fp.Product] += h.m2
		if h.fp.AcquiredAt.After(latest.AcquiredAt) || (h.fp.AcquiredAt.Equal(latest.AcquiredAt) && h.fp.ID < latest.ID) {
			latest = h.fp
		}
	}
	var product string
	for _, h := range hits {
		p := h.fp.Product
		if product == "" || byProduct[p] > byProduct[product] || (byProduct[p] == byProduct[product] && p < product) {
			product = p
		}
	}
	categorical["product"] = model.CategoricalAggregate{
		Value:  model.Text(product),
		AreaHa: aggregate.ToHa(byProduct[product]),
		Share:  aggregate.Fraction(byProduct[product], total),
	}
	if !latest.AcquiredAt.IsZero() {
		categorical["latest_acquisition"] = model.CategoricalAggregate{
			Value:  model.Text(latest.AcquiredAt.UTC().Format(time.DateOnly)),
			AreaHa: aggregate.ToHa(total),
			Share:  1,
		}
	}
	if product == ProductNDVI && len(byProduct) == 1 {
		categorical["health_status"] = model.CategoricalAggregate{
			Value:  model.Text(HealthStatus(numeric["mean"].Value)),
			AreaHa: aggregate.ToHa(total),
			Share:  1,
		}
	}
	return numeric, categorical
}

// HealthStatus buckets a mean NDVI value.
func HealthStatus(ndvi float64) string {
	switch {
	case ndvi < 0.2:
		return "Poor"
	case ndvi < 0.4:
		return "Fair"
	case ndvi < 0.6:
		return "Good"
	default:
		return "Excellent"
	}
}
