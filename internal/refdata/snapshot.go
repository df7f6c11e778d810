package refdata

import (
	"maps"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/spatial"
)

// Snapshot is one immutable generation of reference data. Requests keep
// the snapshot they started with even if a reload swaps in a newer one.
type Snapshot struct {
	Generation uint64
	LoadedAt   time.Time
	Source     string

	versions   map[model.LayerKind]uint64
	features   map[model.LayerKind]map[string]*model.VectorFeature
	indexes    map[model.LayerKind]*spatial.RTree
	footprints map[string]*model.RasterFootprint
	fpIndex    *spatial.RTree
	duplicates int
}

func NewSnapshot(gen uint64, source string, ds Dataset, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		Generation: gen,
		LoadedAt:   loadedAt,
		Source:     source,
		versions:   make(map[model.LayerKind]uint64),
		features:   make(map[model.LayerKind]map[string]*model.VectorFeature),
		indexes:    make(map[model.LayerKind]*spatial.RTree),
		footprints: make(map[string]*model.RasterFootprint),
	}
	maps.Copy(s.versions, ds.Versions)

	entries := make(map[model.LayerKind][]spatial.Entry)
	for i := range ds.Features {
		f := ds.Features[i]
		if f.BBox.IsEmpty() {
			f.BBox = f.Geometry.BBox()
		}
		byID := s.features[f.Layer]
		if byID == nil {
			byID = make(map[string]*model.VectorFeature)
			s.features[f.Layer] = byID
		}
		if _, dup := byID[f.ID]; dup {
			s.duplicates++
			continue
		}
		byID[f.ID] = &f
		entries[f.Layer] = append(entries[f.Layer], spatial.Entry{ID: f.ID, BBox: f.BBox})
	}
	for layer, es := range entries {
		s.indexes[layer] = spatial.Build(es)
	}

	var fps []spatial.Entry
	for i := range ds.Footprints {
		fp := ds.Footprints[i]
		if fp.BBox.IsEmpty() {
			fp.BBox = fp.Footprint.BBox()
		}
		if _, dup := s.footprints[fp.ID]; dup {
			s.duplicates++
			continue
		}
		s.footprints[fp.ID] = &fp
		fps = append(fps, spatial.Entry{ID: fp.ID, BBox: fp.BBox})
	}
	s.fpIndex = spatial.Build(fps)
	return s
}

// Candidates returns IDs of layer features whose boxes intersect bb, sorted.
func (s *Snapshot) Candidates(layer model.LayerKind, bb model.BBox) []string {
	idx := s.indexes[layer]
	if idx == nil {
		return nil
	}
	return idx.Search(bb)
}

func (s *Snapshot) Feature(layer model.LayerKind, id string) (*model.VectorFeature, bool) {
	f, ok := s.features[layer][id]
	return f, ok
}

func (s *Snapshot) FootprintCandidates(bb model.BBox) []string {
	return s.fpIndex.Search(bb)
}

func (s *Snapshot) Footprint(id string) (*model.RasterFootprint, bool) {
	fp, ok := s.footprints[id]
	return fp, ok
}

func (s *Snapshot) Version(layer model.LayerKind) uint64 {
	return s.versions[layer]
}

func (s *Snapshot) Versions() map[model.LayerKind]uint64 {
	return maps.Clone(s.versions)
}

type Counts struct {
	Features   map[model.LayerKind]int
	Footprints int
	Duplicates int
}

func (s *Snapshot) Counts() Counts {
	c := Counts{Features: make(map[model.LayerKind]int), Footprints: len(s.footprints), Duplicates: s.duplicates}
	for layer, byID := range s.features {
		c.Features[layer] = len(byID)
	}
	return c
}
