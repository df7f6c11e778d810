package vector

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/mohammed-shakir/agro-zonal/internal/aggregate"
	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

// tieRel is the relative area difference under which categorical values tie.
const tieRel = 1e-9

type numericSum struct {
	weighted float64
	weight   float64
	min, max float64
	n        int
}

type categoryArea struct {
	value model.AttrValue
	area  float64
	// rank of the first contributing feature that carried this value
	rank int
}

type accumulator struct {
	schema   model.LayerSchema
	numeric  map[string]*numericSum
	category map[string]map[string]*categoryArea
	catTotal map[string]float64
	features int
	warnings []model.Warning
}

func newAccumulator(schema model.LayerSchema) *accumulator {
	return &accumulator{
		schema:   schema,
		numeric:  make(map[string]*numericSum),
		category: make(map[string]map[string]*categoryArea),
		catTotal: make(map[string]float64),
	}
}

func (a *accumulator) warn(kind model.WarningKind, id, detail string) {
	a.warnings = append(a.warnings, model.Warning{Kind: kind, FeatureID: id, Detail: detail})
}

// add folds one contributing feature with overlap area m2. Features must
// arrive in ascending ID order for tie-breaking to be stable.
func (a *accumulator) add(f *model.VectorFeature, m2 float64) {
	rank := a.features
	a.features++
	for _, name := range slices.Sorted(maps.Keys(f.Attrs)) {
		v := f.Attrs[name]
		if !a.schema.Check(name, v) {
			a.warn(model.WarnAttributeKind, f.ID, fmt.Sprintf("attribute %s is %s, want %s", name, v.Kind(), a.schema[name]))
			continue
		}
		switch v.Kind() {
		case model.AttrNumeric:
			x, _ := v.Num()
			s := a.numeric[name]
			if s == nil {
				s = &numericSum{min: math.Inf(1), max: math.Inf(-1)}
				a.numeric[name] = s
			}
			s.weighted += x * m2
			s.weight += m2
			s.min = math.Min(s.min, x)
			s.max = math.Max(s.max, x)
			s.n++
		case model.AttrText, model.AttrBoolean:
			byVal := a.category[name]
			if byVal == nil {
				byVal = make(map[string]*categoryArea)
				a.category[name] = byVal
			}
			c := byVal[v.Key()]
			if c == nil {
				c = &categoryArea{value: v, rank: rank}
				byVal[v.Key()] = c
			}
			c.area += m2
			a.catTotal[name] += m2
		}
	}
}

func (a *accumulator) result(layer model.LayerKind) model.AggregatedLayer {
	out := model.AggregatedLayer{
		Layer:                layer,
		ContributingFeatures: a.features,
		Warnings:             a.warnings,
	}
	if len(a.numeric) > 0 {
		out.Numeric = make(map[string]model.NumericAggregate, len(a.numeric))
		for name, s := range a.numeric {
			mean := s.weighted / s.weight
			// rounding can push the ratio a hair outside the observed range
			mean = math.Max(s.min, math.Min(s.max, mean))
			out.Numeric[name] = model.NumericAggregate{
				Value:    mean,
				Min:      s.min,
				Max:      s.max,
				WeightHa: aggregate.ToHa(s.weight),
				Features: s.n,
			}
		}
	}
	if len(a.category) > 0 {
		out.Categorical = make(map[string]model.CategoricalAggregate, len(a.category))
		for name, byVal := range a.category {
			best := pickCategory(byVal)
			out.Categorical[name] = model.CategoricalAggregate{
				Value:  best.value,
				AreaHa: aggregate.ToHa(best.area),
				Share:  aggregate.Fraction(best.area, a.catTotal[name]),
			}
		}
	}
	return out
}

func pickCategory(byVal map[string]*categoryArea) *categoryArea {
	cands := slices.SortedFunc(maps.Values(byVal), func(x, y *categoryArea) int { return x.rank - y.rank })
	var best *categoryArea
	for _, c := range cands {
		if best == nil {
			best = c
			continue
		}
		diff := c.area - best.area
		tol := tieRel * math.Max(c.area, best.area)
		switch {
		case diff > tol:
			best = c
		case math.Abs(diff) <= tol && c.rank < best.rank:
			best = c
		}
	}
	return best
}
