package export

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"text/template"
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
)

// CoverageAttribute names the row emitted for layers with no attributes.
const CoverageAttribute = "_coverage"

var csvHeader = []string{
	"layer", "attribute", "kind", "value", "min", "max",
	"area_ha", "covered_fraction", "contributing_features",
}

// Encode renders report in the given format. The output depends only on
// its arguments.
func Encode(report model.AreaReport, aoi model.AOI, f Format) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	switch f {
	case Tabular:
		b, err = encodeCSV(report)
	case GeometryWithProperties:
		b, err = encodeGeoJSON(report, aoi)
	case Document:
		b, err = encodeMarkdown(report)
	default:
		return nil, &ExportError{Kind: UnsupportedFormat, Format: f.String()}
	}
	if err != nil {
		return nil, &ExportError{Kind: EncodingFailure, Format: f.String(), Err: err}
	}
	return b, nil
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

type row struct {
	Attribute string
	Kind      string
	Value     string
	Min       string
	Max       string
	AreaHa    float64
}

func layerRows(l model.AggregatedLayer) []row {
	names := slices.Sorted(maps.Keys(l.Numeric))
	for name := range l.Categorical {
		if _, dup := l.Numeric[name]; !dup {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	rows := make([]row, 0, len(names))
	for _, name := range names {
		if n, ok := l.Numeric[name]; ok {
			rows = append(rows, row{
				Attribute: name, Kind: model.AttrNumeric.String(),
				Value: num(n.Value), Min: num(n.Min), Max: num(n.Max), AreaHa: n.WeightHa,
			})
			continue
		}
		c := l.Categorical[name]
		rows = append(rows, row{
			Attribute: name, Kind: c.Value.Kind().String(),
			Value: c.Value.String(), AreaHa: c.AreaHa,
		})
	}
	if len(rows) == 0 {
		rows = append(rows, row{Attribute: CoverageAttribute, AreaHa: l.CoveredAreaHa})
	}
	return rows
}

func encodeCSV(r model.AreaReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, l := range r.Layers {
		for _, rw := range layerRows(l) {
			rec := []string{
				l.Layer.String(), rw.Attribute, rw.Kind, rw.Value, rw.Min, rw.Max,
				num(rw.AreaHa), num(l.CoveredFraction), strconv.Itoa(l.ContributingFeatures),
			}
			if err := w.Write(rec); err != nil {
				return nil, fmt.Errorf("write %s/%s: %w", l.Layer, rw.Attribute, err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func layerProperties(l model.AggregatedLayer) map[string]any {
	p := map[string]any{
		"covered_fraction":      l.CoveredFraction,
		"covered_area_ha":       l.CoveredAreaHa,
		"contributing_features": l.ContributingFeatures,
	}
	for name, n := range l.Numeric {
		p[name] = n.Value
	}
	for name, c := range l.Categorical {
		if _, dup := l.Numeric[name]; !dup {
			p[name] = c.Value
		}
	}
	return p
}

func encodeGeoJSON(r model.AreaReport, aoi model.AOI) ([]byte, error) {
	g, err := geometry.ToGeom(aoi.Polygons)
	if err != nil {
		return nil, fmt.Errorf("aoi geometry: %w", err)
	}
	layers := make(map[string]any, len(r.Layers))
	for _, l := range r.Layers {
		layers[l.Layer.String()] = layerProperties(l)
	}
	fc := geojson.FeatureCollection{Features: []*geojson.Feature{{
		ID:       r.AOIID,
		Geometry: g,
		Properties: map[string]any{
			"aoi_id":       r.AOIID,
			"area_ha":      r.AOIAreaHa,
			"generated_at": r.GeneratedAt.UTC().Format(time.RFC3339Nano),
			"layers":       layers,
		},
	}}}
	b, err := json.Marshal(&fc)
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return b, nil
}

//go:embed report.md.tmpl
var markdownSrc string

var markdownTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"num":  num,
	"pct":  func(f float64) string { return strconv.FormatFloat(f*100, 'f', 1, 64) + "%" },
	"rows": layerRows,
	"ts":   func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}).Parse(markdownSrc))

func encodeMarkdown(r model.AreaReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownTmpl.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.Bytes(), nil
}
