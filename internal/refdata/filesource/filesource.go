// Package filesource loads reference layers from GeoJSON files in a directory.
package filesource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata"
)

const (
	FootprintsFile = "raster_footprints.geojson"
	VersionsFile   = "versions.json"
)

// LayerFile is the file name holding a vector layer.
func LayerFile(k model.LayerKind) string { return k.String() + ".geojson" }

type Source struct {
	dir string
}

func New(dir string) *Source { return &Source{dir: dir} }

func (s *Source) Name() string { return "file:" + s.dir }

type rawFeature struct {
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// Load reads every layer file present; missing files leave the layer empty.
func (s *Source) Load(ctx context.Context) (refdata.Dataset, error) {
	ds := refdata.Dataset{Versions: make(map[model.LayerKind]uint64)}
	for _, layer := range model.AllLayers {
		if !layer.IsVector() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return refdata.Dataset{}, err
		}
		fc, ok, err := s.readCollection(LayerFile(layer))
		if err != nil {
			return refdata.Dataset{}, err
		}
		if !ok {
			continue
		}
		for i, rf := range fc.Features {
			f, err := vectorFeature(layer, i, rf)
			if err != nil {
				ds.Rejected = append(ds.Rejected, model.Warning{Kind: model.WarnCandidateGeometry, FeatureID: f.ID, Detail: err.Error()})
				continue
			}
			ds.Features = append(ds.Features, f)
		}
		ds.Versions[layer] = 1
	}

	fc, ok, err := s.readCollection(FootprintsFile)
	if err != nil {
		return refdata.Dataset{}, err
	}
	if ok {
		for i, rf := range fc.Features {
			fp, err := footprint(i, rf)
			if err != nil {
				ds.Rejected = append(ds.Rejected, model.Warning{Kind: model.WarnCandidateGeometry, FeatureID: fp.ID, Detail: err.Error()})
				continue
			}
			ds.Footprints = append(ds.Footprints, fp)
		}
		ds.Versions[model.LayerRaster] = 1
	}

	if err := s.readVersions(ds.Versions); err != nil {
		return refdata.Dataset{}, err
	}
	for i := range ds.Features {
		ds.Features[i].Source.Version = ds.Versions[ds.Features[i].Layer]
	}
	return ds, nil
}

func (s *Source) readCollection(name string) (rawCollection, bool, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return rawCollection{}, false, nil
	}
	if err != nil {
		return rawCollection{}, false, fmt.Errorf("read %s: %w", name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var fc rawCollection
	if err := dec.Decode(&fc); err != nil {
		return rawCollection{}, false, fmt.Errorf("decode %s: %w", name, err)
	}
	if fc.Type != "FeatureCollection" {
		return rawCollection{}, false, fmt.Errorf("%s: expected FeatureCollection, got %q", name, fc.Type)
	}
	return fc, true, nil
}

func (s *Source) readVersions(into map[model.LayerKind]uint64) error {
	b, err := os.ReadFile(filepath.Join(s.dir, VersionsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", VersionsFile, err)
	}
	var raw map[string]uint64
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode %s: %w", VersionsFile, err)
	}
	for name, v := range raw {
		k, err := model.ParseLayerKind(name)
		if err != nil {
			return fmt.Errorf("%s: %w", VersionsFile, err)
		}
		into[k] = v
	}
	return nil
}

func featureID(raw json.RawMessage, props map[string]any, prefix string, i int) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		return string(raw)
	}
	if v, ok := props["id"]; ok {
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("%s-%d", prefix, i)
}

func vectorFeature(layer model.LayerKind, i int, rf rawFeature) (model.VectorFeature, error) {
	f := model.VectorFeature{
		ID:     featureID(rf.ID, rf.Properties, layer.String(), i),
		Layer:  layer,
		Attrs:  make(map[string]model.AttrValue, len(rf.Properties)),
		Source: model.SourceMeta{Name: LayerFile(layer)},
	}
	mp, err := geometry.DecodeGeometry(rf.Geometry)
	if err != nil {
		return f, err
	}
	f.Geometry = mp
	f.BBox = mp.BBox()
	for k, v := range rf.Properties {
		if k == "id" {
			continue
		}
		if av, ok := model.AttrFromAny(v); ok {
			f.Attrs[k] = av
		}
	}
	return f, nil
}

func footprint(i int, rf rawFeature) (model.RasterFootprint, error) {
	fp := model.RasterFootprint{ID: featureID(rf.ID, rf.Properties, "raster", i)}
	mp, err := geometry.DecodeGeometry(rf.Geometry)
	if err != nil {
		return fp, err
	}
	fp.Footprint = mp
	fp.BBox = mp.BBox()
	fp.Product = strings.ToLower(str(rf.Properties["product"]))
	fp.Locator = str(rf.Properties["locator"])
	if s := str(rf.Properties["acquired_at"]); s != "" {
		t, err := ParseAcquired(s)
		if err != nil {
			return fp, err
		}
		fp.AcquiredAt = t
	}
	var ok bool
	if fp.Stats.Min, ok = num(rf.Properties["min"]); !ok {
		return fp, errors.New("missing numeric min")
	}
	if fp.Stats.Mean, ok = num(rf.Properties["mean"]); !ok {
		return fp, errors.New("missing numeric mean")
	}
	if fp.Stats.Max, ok = num(rf.Properties["max"]); !ok {
		return fp, errors.New("missing numeric max")
	}
	return fp, nil
}

// ParseAcquired accepts RFC 3339 timestamps or plain dates.
func ParseAcquired(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("acquired_at %q: %w", s, err)
	}
	return t, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) (float64, bool) {
	av, ok := model.AttrFromAny(v)
	if !ok {
		return 0, false
	}
	return av.Num()
}
