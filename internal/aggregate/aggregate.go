// Package aggregate defines per-layer aggregation over an area of interest.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
)

type FeatureSource interface {
	Candidates(layer model.LayerKind, bb model.BBox) []string
	Feature(layer model.LayerKind, id string) (*model.VectorFeature, bool)
}

type FootprintSource interface {
	FootprintCandidates(bb model.BBox) []string
	Footprint(id string) (*model.RasterFootprint, bool)
}

type Source interface {
	FeatureSource
	FootprintSource
}

// RasterOptions restricts footprints by acquisition window and product.
// Zero times leave that end of the window open; an empty product matches all.
type RasterOptions struct {
	From    time.Time
	To      time.Time
	Product string
}

func (o RasterOptions) Match(fp *model.RasterFootprint) bool {
	if o.Product != "" && !strings.EqualFold(o.Product, fp.Product) {
		return false
	}
	if !o.From.IsZero() && fp.AcquiredAt.Before(o.From) {
		return false
	}
	if !o.To.IsZero() && fp.AcquiredAt.After(o.To) {
		return false
	}
	return true
}

// Key is a stable text form for cache keys.
func (o RasterOptions) Key() string {
	f := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s|%s|%s", strings.ToLower(o.Product), f(o.From), f(o.To))
}

type Request struct {
	AOI    model.AOI
	Layer  model.LayerKind
	Data   Source
	Raster RasterOptions
}

type Interface interface {
	Aggregate(ctx context.Context, req Request) (model.AggregatedLayer, error)
}

// Workspace is the projected AOI shared by all candidates of one layer.
type Workspace struct {
	Proj   geometry.Projector
	AOI    geometry.Region
	AreaM2 float64
}

func NewWorkspace(aoi model.AOI) (Workspace, error) {
	p := geometry.NewProjector(aoi.BBox.Center())
	reg, err := geometry.NewRegion(p, aoi.Polygons)
	if err != nil {
		return Workspace{}, fmt.Errorf("project aoi: %w", err)
	}
	return Workspace{Proj: p, AOI: reg, AreaM2: reg.Area()}, nil
}

// Fraction returns covered/total clamped to [0,1].
func Fraction(covered, total float64) float64 {
	if total <= 0 || covered <= 0 || math.IsNaN(covered) {
		return 0
	}
	return math.Min(covered/total, 1)
}

// MinOverlapM2 is the smallest overlap treated as a real intersection.
const MinOverlapM2 = 1e-6

func ToHa(m2 float64) float64 { return m2 / 10000 }
