// Package pgsource loads reference layers from PostGIS tables.
package pgsource

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata"
)

// pq error code for a missing relation
const undefinedTable = "42P01"

type Tables struct {
	Soil       string
	Rainfall   string
	Crop       string
	Footprints string
	Versions   string
}

func DefaultTables() Tables {
	return Tables{
		Soil:       "soil_data",
		Rainfall:   "rainfall_zones",
		Crop:       "crop_suitability",
		Footprints: "raster_footprints",
		Versions:   "data_versions",
	}
}

func (t Tables) layer(k model.LayerKind) string {
	switch k {
	case model.LayerSoil:
		return t.Soil
	case model.LayerRainfall:
		return t.Rainfall
	case model.LayerCropSuitability:
		return t.Crop
	default:
		return ""
	}
}

type Source struct {
	db     *sqlx.DB
	tables Tables
}

func Open(ctx context.Context, dsn string, tables Tables) (*Source, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db, tables), nil
}

func New(db *sqlx.DB, tables Tables) *Source {
	return &Source{db: db, tables: tables}
}

func (s *Source) Name() string { return "postgis" }

func (s *Source) Close() error { return s.db.Close() }

type featureRow struct {
	ID    string `db:"id"`
	Geom  []byte `db:"geom_wkb"`
	Attrs []byte `db:"attrs"`
}

type footprintRow struct {
	ID         string         `db:"id"`
	Product    string         `db:"product"`
	AcquiredAt sql.NullTime   `db:"acquired_at"`
	Min        float64        `db:"stat_min"`
	Mean       float64        `db:"stat_mean"`
	Max        float64        `db:"stat_max"`
	Locator    sql.NullString `db:"locator"`
	Geom       []byte         `db:"geom_wkb"`
}

type versionRow struct {
	Layer   string `db:"layer"`
	Version int64  `db:"version"`
}

func (s *Source) Load(ctx context.Context) (refdata.Dataset, error) {
	ds := refdata.Dataset{Versions: make(map[model.LayerKind]uint64)}
	for _, layer := range model.AllLayers {
		table := s.tables.layer(layer)
		if table == "" {
			continue
		}
		q := fmt.Sprintf(`SELECT id::text AS id, ST_AsBinary(geom) AS geom_wkb,
			(to_jsonb(t) - 'geom' - 'id')::text AS attrs
			FROM %s t ORDER BY id`, pq.QuoteIdentifier(table))
		var rows []featureRow
		if err := s.db.SelectContext(ctx, &rows, q); err != nil {
			if isUndefinedTable(err) {
				continue
			}
			return refdata.Dataset{}, fmt.Errorf("query %s: %w", table, err)
		}
		for _, r := range rows {
			f, err := featureFromRow(layer, r)
			if err != nil {
				ds.Rejected = append(ds.Rejected, model.Warning{Kind: model.WarnCandidateGeometry, FeatureID: r.ID, Detail: err.Error()})
				continue
			}
			ds.Features = append(ds.Features, f)
		}
		ds.Versions[layer] = 1
	}

	if s.tables.Footprints != "" {
		q := fmt.Sprintf(`SELECT id::text AS id, product, acquired_at, stat_min, stat_mean, stat_max, locator,
			ST_AsBinary(footprint) AS geom_wkb FROM %s ORDER BY id`, pq.QuoteIdentifier(s.tables.Footprints))
		var rows []footprintRow
		err := s.db.SelectContext(ctx, &rows, q)
		switch {
		case err == nil:
			for _, r := range rows {
				fp, err := footprintFromRow(r)
				if err != nil {
					ds.Rejected = append(ds.Rejected, model.Warning{Kind: model.WarnCandidateGeometry, FeatureID: r.ID, Detail: err.Error()})
					continue
				}
				ds.Footprints = append(ds.Footprints, fp)
			}
			ds.Versions[model.LayerRaster] = 1
		case !isUndefinedTable(err):
			return refdata.Dataset{}, fmt.Errorf("query %s: %w", s.tables.Footprints, err)
		}
	}

	if s.tables.Versions != "" {
		var rows []versionRow
		q := fmt.Sprintf(`SELECT layer, version FROM %s`, pq.QuoteIdentifier(s.tables.Versions))
		err := s.db.SelectContext(ctx, &rows, q)
		if err != nil && !isUndefinedTable(err) {
			return refdata.Dataset{}, fmt.Errorf("query %s: %w", s.tables.Versions, err)
		}
		if err := applyVersions(ds.Versions, rows); err != nil {
			return refdata.Dataset{}, err
		}
	}
	for i := range ds.Features {
		ds.Features[i].Source.Version = ds.Versions[ds.Features[i].Layer]
	}
	return ds, nil
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == undefinedTable
}

func decodeWKB(b []byte) (model.MultiPolygon, error) {
	if len(b) == 0 {
		return nil, errors.New("null geometry")
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("decode wkb: %w", err)
	}
	return geometry.FromGeom(g)
}

func featureFromRow(layer model.LayerKind, r featureRow) (model.VectorFeature, error) {
	mp, err := decodeWKB(r.Geom)
	if err != nil {
		return model.VectorFeature{}, err
	}
	f := model.VectorFeature{
		ID:       r.ID,
		Layer:    layer,
		Geometry: mp,
		BBox:     mp.BBox(),
		Attrs:    make(map[string]model.AttrValue),
		Source:   model.SourceMeta{Name: "postgis"},
	}
	if len(r.Attrs) == 0 {
		return f, nil
	}
	dec := json.NewDecoder(bytes.NewReader(r.Attrs))
	dec.UseNumber()
	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return model.VectorFeature{}, fmt.Errorf("decode attributes: %w", err)
	}
	for k, v := range attrs {
		if av, ok := model.AttrFromAny(v); ok {
			f.Attrs[k] = av
		}
	}
	return f, nil
}

func footprintFromRow(r footprintRow) (model.RasterFootprint, error) {
	mp, err := decodeWKB(r.Geom)
	if err != nil {
		return model.RasterFootprint{}, err
	}
	fp := model.RasterFootprint{
		ID:        r.ID,
		Product:   strings.ToLower(r.Product),
		Footprint: mp,
		BBox:      mp.BBox(),
		Stats:     model.RasterStats{Min: r.Min, Mean: r.Mean, Max: r.Max},
		Locator:   r.Locator.String,
	}
	if r.AcquiredAt.Valid {
		fp.AcquiredAt = r.AcquiredAt.Time.UTC()
	}
	return fp, nil
}

func applyVersions(into map[model.LayerKind]uint64, rows []versionRow) error {
	for _, r := range rows {
		k, err := model.ParseLayerKind(r.Layer)
		if err != nil {
			return fmt.Errorf("data_versions: %w", err)
		}
		if r.Version < 0 {
			return fmt.Errorf("data_versions: negative version for %s", r.Layer)
		}
		into[k] = uint64(r.Version)
	}
	return nil
}

