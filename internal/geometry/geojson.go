package geometry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

var ErrNotPolygonal = errors.New("geometry is not a polygon or multipolygon")

// FromGeoJSON accepts a Polygon, MultiPolygon, Feature or FeatureCollection.
// For collections the first polygonal feature is used.
func FromGeoJSON(raw []byte) (model.MultiPolygon, error) {
	var head struct {
		Type     string            `json:"type"`
		Geometry json.RawMessage   `json:"geometry"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	switch head.Type {
	case "Feature":
		return DecodeGeometry(head.Geometry)
	case "FeatureCollection":
		for _, f := range head.Features {
			var feat struct {
				Geometry json.RawMessage `json:"geometry"`
			}
			if err := json.Unmarshal(f, &feat); err != nil {
				return nil, fmt.Errorf("decode feature: %w", err)
			}
			mp, err := DecodeGeometry(feat.Geometry)
			if errors.Is(err, ErrNotPolygonal) {
				continue
			}
			return mp, err
		}
		return nil, fmt.Errorf("feature collection: %w", ErrNotPolygonal)
	default:
		return DecodeGeometry(raw)
	}
}

// DecodeGeometry decodes a bare GeoJSON geometry object.
func DecodeGeometry(raw []byte) (model.MultiPolygon, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("missing geometry: %w", ErrNotPolygonal)
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return FromGeom(g)
}

func FromGeom(g geom.T) (model.MultiPolygon, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return model.MultiPolygon{polygonFromGeom(t)}, nil
	case *geom.MultiPolygon:
		out := make(model.MultiPolygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			out = append(out, polygonFromGeom(t.Polygon(i)))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%T: %w", g, ErrNotPolygonal)
	}
}

func polygonFromGeom(p *geom.Polygon) model.Polygon {
	out := make(model.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make(model.Ring, len(coords))
		for j, c := range coords {
			ring[j] = model.Coord{Lon: c.X(), Lat: c.Y()}
		}
		out = append(out, ring)
	}
	return out
}

// ToGeom returns a Polygon for single-polygon input, else a MultiPolygon.
func ToGeom(mp model.MultiPolygon) (geom.T, error) {
	coords := make([][][]geom.Coord, len(mp))
	for i, poly := range mp {
		coords[i] = make([][]geom.Coord, len(poly))
		for j, r := range poly {
			ring := make([]geom.Coord, len(r))
			for k, c := range r {
				ring[k] = geom.Coord{c.Lon, c.Lat}
			}
			coords[i][j] = ring
		}
	}
	if len(coords) == 1 {
		p, err := geom.NewPolygon(geom.XY).SetCoords(coords[0])
		if err != nil {
			return nil, fmt.Errorf("build polygon: %w", err)
		}
		return p, nil
	}
	m, err := geom.NewMultiPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, fmt.Errorf("build multipolygon: %w", err)
	}
	return m, nil
}
