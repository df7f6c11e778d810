// Package invalidation describes data-version events announcing that a
// reference layer was republished.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

type Event struct {
	Version uint64    `json:"version"`
	Layer   string    `json:"layer"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version == 0 {
		return errors.New("version must be > 0")
	}
	if strings.TrimSpace(e.Layer) == "" {
		return errors.New("layer is required")
	}
	if _, err := model.ParseLayerKind(e.Layer); err != nil {
		return fmt.Errorf("layer: %w", err)
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	return nil
}

// Kind returns the layer named by the event; call Validate first.
func (e Event) Kind() model.LayerKind {
	k, _ := model.ParseLayerKind(e.Layer)
	return k
}
