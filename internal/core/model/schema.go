package model

// LayerSchema maps attribute names to their declared kind.
type LayerSchema map[string]AttrKind

var DefaultSchemas = map[LayerKind]LayerSchema{
	LayerSoil: {
		"ph_level":       AttrNumeric,
		"organic_matter": AttrNumeric,
		"nitrogen":       AttrNumeric,
		"phosphorus":     AttrNumeric,
		"potassium":      AttrNumeric,
		"soil_type":      AttrText,
		"texture":        AttrText,
		"drainage":       AttrText,
	},
	LayerRainfall: {
		"annual_avg":     AttrNumeric,
		"monsoon_avg":    AttrNumeric,
		"dry_season_avg": AttrNumeric,
		"zone_name":      AttrText,
		"drought_prone":  AttrBoolean,
	},
	LayerCropSuitability: {
		"suitability_score": AttrNumeric,
		"yield_potential":   AttrNumeric,
		"water_requirement": AttrNumeric,
		"crop_name":         AttrText,
		"growing_season":    AttrText,
	},
}

// Check reports whether v matches the declared kind for name. Undeclared
// attributes always pass.
func (s LayerSchema) Check(name string, v AttrValue) bool {
	want, ok := s[name]
	if !ok {
		return true
	}
	return want == v.Kind()
}
