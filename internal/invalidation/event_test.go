package invalidation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func TestEvent_Validate_HappyPath(t *testing.T) {
	ev := Event{Version: 3, Layer: "Soil", TS: mustTS()}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if ev.Kind() != model.LayerSoil {
		t.Fatalf("kind=%v", ev.Kind())
	}
}

func TestEvent_Validate_Rejects(t *testing.T) {
	cases := map[string]Event{
		"zero version":  {Layer: "soil", TS: mustTS()},
		"missing layer": {Version: 1, TS: mustTS()},
		"unknown layer": {Version: 1, Layer: "elevation", TS: mustTS()},
		"missing ts":    {Version: 1, Layer: "rainfall"},
	}
	for name, ev := range cases {
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEvent_WireFormat(t *testing.T) {
	var ev Event
	raw := `{"version":4,"layer":"crop_suitability","ts":"2025-10-26T12:30:45Z"}`
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ev.Kind() != model.LayerCropSuitability || !ev.TS.Equal(mustTS()) {
		t.Fatalf("decoded %+v", ev)
	}
}
