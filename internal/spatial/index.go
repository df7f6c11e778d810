// Package spatial indexes feature bounding boxes for candidate lookup.
package spatial

import (
	"sort"

	"github.com/tidwall/rtree"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

type Entry struct {
	ID   string
	BBox model.BBox
}

// Index returns every entry whose box intersects the query box (closed
// intervals). It may return false positives but never false negatives.
type Index interface {
	Search(bb model.BBox) []string
	Len() int
}

// RTree is immutable after Build and safe for concurrent Search.
type RTree struct {
	tr rtree.RTreeG[string]
	n  int
}

func Build(entries []Entry) *RTree {
	t := &RTree{}
	for _, e := range entries {
		if e.BBox.IsEmpty() {
			continue
		}
		t.tr.Insert([2]float64{e.BBox.X1, e.BBox.Y1}, [2]float64{e.BBox.X2, e.BBox.Y2}, e.ID)
		t.n++
	}
	return t
}

// Search returns matching IDs sorted ascending.
func (t *RTree) Search(bb model.BBox) []string {
	if bb.IsEmpty() {
		return nil
	}
	var out []string
	t.tr.Search([2]float64{bb.X1, bb.Y1}, [2]float64{bb.X2, bb.Y2}, func(_, _ [2]float64, id string) bool {
		out = append(out, id)
		return true
	})
	sort.Strings(out)
	return out
}

func (t *RTree) Len() int { return t.n }
