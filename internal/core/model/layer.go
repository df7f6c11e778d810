package model

import (
	"fmt"
	"strings"
)

type LayerKind int

const (
	LayerSoil LayerKind = iota + 1
	LayerRainfall
	LayerCropSuitability
	LayerRaster
)

// AllLayers is the canonical report order.
var AllLayers = []LayerKind{LayerSoil, LayerRainfall, LayerCropSuitability, LayerRaster}

func (k LayerKind) String() string {
	switch k {
	case LayerSoil:
		return "soil"
	case LayerRainfall:
		return "rainfall"
	case LayerCropSuitability:
		return "crop_suitability"
	case LayerRaster:
		return "raster"
	default:
		return fmt.Sprintf("layer(%d)", int(k))
	}
}

func (k LayerKind) Valid() bool {
	return k >= LayerSoil && k <= LayerRaster
}

func (k LayerKind) IsVector() bool {
	return k == LayerSoil || k == LayerRainfall || k == LayerCropSuitability
}

// ParseLayerKind accepts layer names case-insensitively; "crop" is an alias.
func ParseLayerKind(s string) (LayerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "soil":
		return LayerSoil, nil
	case "rainfall", "rain":
		return LayerRainfall, nil
	case "crop_suitability", "crop", "cropsuitability":
		return LayerCropSuitability, nil
	case "raster", "imagery":
		return LayerRaster, nil
	default:
		return 0, fmt.Errorf("unknown layer %q", s)
	}
}

func (k LayerKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid layer kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *LayerKind) UnmarshalText(b []byte) error {
	v, err := ParseLayerKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
