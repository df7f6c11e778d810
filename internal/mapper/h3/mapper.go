package h3mapper

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/mapper"
)

type Mapper struct{}

var _ mapper.Interface = (*Mapper)(nil)

func New() *Mapper { return &Mapper{} }

func (m *Mapper) CellForPoint(c model.Coord, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: c.Lat, Lng: c.Lon}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell for %v,%v: %w", c.Lon, c.Lat, err)
	}
	return cell.String(), nil
}

func (m *Mapper) ToParent(cell string, parentRes int) (string, error) {
	if err := validateRes(parentRes); err != nil {
		return "", err
	}
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil {
		return "", fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return "", fmt.Errorf("invalid h3 cell %q", cell)
	}
	curRes := c.Resolution()
	if parentRes > curRes {
		return "", fmt.Errorf("parentRes %d must be <= cell resolution %d", parentRes, curRes)
	}
	if parentRes == curRes {
		return cell, nil
	}
	p, err := c.Parent(parentRes)
	if err != nil {
		return "", fmt.Errorf("h3 parent: %w", err)
	}
	return p.String(), nil
}

// AOICells returns the cell holding the AOI's bbox center at res followed by
// its ancestor at parentRes, so repeated requests around one field and
// requests spread over a farm both register as heat.
func AOICells(m mapper.Interface, aoi model.AOI, res, parentRes int) ([]string, error) {
	if aoi.BBox.IsEmpty() {
		return nil, fmt.Errorf("aoi %s has empty bbox", aoi.ID)
	}
	cell, err := m.CellForPoint(aoi.BBox.Center(), res)
	if err != nil {
		return nil, err
	}
	if parentRes >= res {
		return []string{cell}, nil
	}
	parent, err := m.ToParent(cell, parentRes)
	if err != nil {
		return nil, err
	}
	return []string{cell, parent}, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
