package model

import "time"

type SourceMeta struct {
	Name    string `json:"name"`
	Version uint64 `json:"version"`
}

type VectorFeature struct {
	ID       string
	Layer    LayerKind
	Geometry MultiPolygon
	Attrs    map[string]AttrValue
	Source   SourceMeta
	BBox     BBox
}

type RasterStats struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

type RasterFootprint struct {
	ID         string
	Product    string
	AcquiredAt time.Time
	Footprint  MultiPolygon
	Stats      RasterStats
	Locator    string
	BBox       BBox
}
