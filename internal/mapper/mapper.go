// Package mapper buckets AOIs into H3 cells for hotness tracking.
package mapper

import "github.com/mohammed-shakir/agro-zonal/internal/core/model"

type Interface interface {
	CellForPoint(c model.Coord, res int) (string, error)
	ToParent(cell string, parentRes int) (string, error)
}
