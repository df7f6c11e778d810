// Package refdata holds versioned reference layers and swaps them atomically.
package refdata

import (
	"context"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

// Dataset is the full content of one load. Rejected lists records the
// source could not turn into features.
type Dataset struct {
	Features   []model.VectorFeature
	Footprints []model.RasterFootprint
	Versions   map[model.LayerKind]uint64
	Rejected   []model.Warning
}

type Source interface {
	Name() string
	Load(ctx context.Context) (Dataset, error)
}

// StaticSource serves a fixed dataset.
type StaticSource struct {
	Label string
	Data  Dataset
}

func (s StaticSource) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s StaticSource) Load(ctx context.Context) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}
	return s.Data, nil
}
