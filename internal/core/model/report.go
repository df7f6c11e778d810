package model

import "time"

// AOI is a normalized area of interest. Key is derived from the canonical
// rings and ID is a name-based UUID of Key, so equal AOIs share both.
type AOI struct {
	ID       string
	Key      string
	Polygons MultiPolygon
	BBox     BBox
	AreaM2   float64
}

func (a AOI) AreaHa() float64 { return a.AreaM2 / 10000 }

type WarningKind string

const (
	WarnCandidateGeometry WarningKind = "candidate_geometry"
	WarnAttributeKind     WarningKind = "attribute_kind"
)

type Warning struct {
	Kind      WarningKind `json:"kind"`
	FeatureID string      `json:"feature_id"`
	Detail    string      `json:"detail"`
}

type NumericAggregate struct {
	Value    float64 `json:"value"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	WeightHa float64 `json:"weight_ha"`
	Features int     `json:"features"`
}

type CategoricalAggregate struct {
	Value  AttrValue `json:"value"`
	AreaHa float64   `json:"area_ha"`
	Share  float64   `json:"share"`
}

type AggregatedLayer struct {
	Layer                LayerKind                       `json:"layer"`
	ContributingFeatures int                             `json:"contributing_features"`
	Numeric              map[string]NumericAggregate     `json:"numeric,omitempty"`
	Categorical          map[string]CategoricalAggregate `json:"categorical,omitempty"`
	CoveredFraction      float64                         `json:"covered_fraction"`
	CoveredAreaHa        float64                         `json:"covered_area_ha"`
	Warnings             []Warning                       `json:"warnings,omitempty"`
}

// Partial reports whether the layer's data leaves part of the AOI uncovered.
func (l AggregatedLayer) Partial() bool { return l.CoveredFraction < 1 }

type AreaReport struct {
	AOIID        string               `json:"aoi_id"`
	AOIKey       string               `json:"aoi_key"`
	AOIAreaHa    float64              `json:"aoi_area_ha"`
	Layers       []AggregatedLayer    `json:"layers"`
	GeneratedAt  time.Time            `json:"generated_at"`
	DataVersions map[LayerKind]uint64 `json:"data_versions"`
	Generation   uint64               `json:"generation"`
}

func (r AreaReport) Layer(k LayerKind) (AggregatedLayer, bool) {
	for _, l := range r.Layers {
		if l.Layer == k {
			return l, true
		}
	}
	return AggregatedLayer{}, false
}
