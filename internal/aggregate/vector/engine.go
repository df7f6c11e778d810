// Package vector aggregates vector reference layers over an AOI by
// area-weighted overlay.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/aggregate"
	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/core/observability"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
)

type Engine struct {
	logger  *slog.Logger
	schemas map[model.LayerKind]model.LayerSchema
}

var _ aggregate.Interface = (*Engine)(nil)

func New(logger *slog.Logger, schemas map[model.LayerKind]model.LayerSchema) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if schemas == nil {
		schemas = model.DefaultSchemas
	}
	return &Engine{logger: logger, schemas: schemas}
}

func (e *Engine) Aggregate(ctx context.Context, req aggregate.Request) (out model.AggregatedLayer, err error) {
	start := time.Now()
	layer := req.Layer.String()
	defer func() { observability.ObserveLayer(layer, err, time.Since(start)) }()

	if !req.Layer.IsVector() {
		return model.AggregatedLayer{}, fmt.Errorf("vector engine: unsupported layer %s", req.Layer)
	}
	ws, err := aggregate.NewWorkspace(req.AOI)
	if err != nil {
		return model.AggregatedLayer{}, err
	}

	ids := req.Data.Candidates(req.Layer, req.AOI.BBox)
	observability.ObserveCandidates(layer, len(ids))

	acc := newAccumulator(e.schemas[req.Layer])
	var contributing []geometry.Region
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return model.AggregatedLayer{}, err
		}
		f, ok := req.Data.Feature(req.Layer, id)
		if !ok {
			continue
		}
		reg, err := geometry.NewRegion(ws.Proj, f.Geometry)
		if err != nil {
			acc.warn(model.WarnCandidateGeometry, id, err.Error())
			continue
		}
		a, err := geometry.OverlayArea(ctx, ws.AOI, reg)
		if err != nil {
			if ctx.Err() != nil {
				return model.AggregatedLayer{}, ctx.Err()
			}
			acc.warn(model.WarnCandidateGeometry, id, err.Error())
			continue
		}
		if a < aggregate.MinOverlapM2 {
			continue
		}
		acc.add(f, a)
		contributing = append(contributing, reg)
	}

	covered, err := geometry.OverlayArea(ctx, ws.AOI, contributing...)
	if err != nil {
		return model.AggregatedLayer{}, err
	}

	out = acc.result(req.Layer)
	out.CoveredAreaHa = aggregate.ToHa(covered)
	out.CoveredFraction = aggregate.Fraction(covered, ws.AreaM2)

	for _, w := range out.Warnings {
		e.logger.Warn("candidate skipped", "layer", layer, "feature_id", w.FeatureID, "kind", w.Kind, "detail", w.Detail)
	}
	observability.AddLayerWarnings(layer, string(model.WarnCandidateGeometry), countKind(out.Warnings, model.WarnCandidateGeometry))
	observability.AddLayerWarnings(layer, string(model.WarnAttributeKind), countKind(out.Warnings, model.WarnAttributeKind))
	return out, nil
}

func countKind(ws []model.Warning, k model.WarningKind) int {
	n := 0
	for _, w := range ws {
		if w.Kind == k {
			n++
		}
	}
	return n
}
