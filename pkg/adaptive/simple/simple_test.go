package simple

import (
	"testing"
	"time"

	"github.com/mohammed-shakir/agro-zonal/pkg/adaptive"
)

type fakeView map[string]float64

func (f fakeView) Score(k string) float64 { return f[k] }

func TestSimpleDecider_Bands(t *testing.T) {
	d := New(Config{Threshold: 1.0, TTLWarm: 30 * time.Second, TTLHot: time.Minute})

	dec, reason := d.Decide(adaptive.Query{Keys: []string{"c0"}}, fakeView{"c0": 0.5})
	if dec.Type != adaptive.DecisionBypass || reason != adaptive.ReasonCold {
		t.Fatalf("expected bypass cold, got %+v, %s", dec, reason)
	}

	dec, reason = d.Decide(adaptive.Query{Keys: []string{"c1"}}, fakeView{"c1": 1.0})
	if dec.Type != adaptive.DecisionFill || dec.TTL != 30*time.Second || reason != adaptive.ReasonWarm {
		t.Fatalf("expected fill warm TTL, got %+v %s", dec, reason)
	}

	dec, reason = d.Decide(adaptive.Query{Keys: []string{"c2", "parent"}}, fakeView{"c2": 0.1, "parent": 4.0})
	if dec.TTL != time.Minute || reason != adaptive.ReasonHot {
		t.Fatalf("expected hot TTL from parent key, got %+v %s", dec, reason)
	}
}

func TestSimpleDecider_ColdTTLAndNoKeys(t *testing.T) {
	d := New(Config{Threshold: 2, TTLCold: 5 * time.Second})
	dec, reason := d.Decide(adaptive.Query{}, fakeView{})
	if dec.Type != adaptive.DecisionFill || dec.TTL != 5*time.Second || reason != adaptive.ReasonNoKeys {
		t.Fatalf("got %+v %s", dec, reason)
	}
	dec, _ = d.Decide(adaptive.Query{Keys: []string{"x"}}, fakeView{"x": 3})
	if dec.TTL != 5*time.Second {
		t.Fatalf("warm without TTLWarm should use cold TTL, got %+v", dec)
	}
}

func TestSimpleDecider_NoThresholdAlwaysWarm(t *testing.T) {
	d := New(Config{TTLWarm: time.Minute})
	dec, reason := d.Decide(adaptive.Query{Keys: []string{"x"}}, fakeView{})
	if dec.Type != adaptive.DecisionFill || dec.TTL != time.Minute || reason != adaptive.ReasonDefault {
		t.Fatalf("got %+v %s", dec, reason)
	}
}

func TestSimpleDecider_DeterministicGivenInputs(t *testing.T) {
	cfg := Config{Threshold: 1.0, TTLWarm: 30 * time.Second}
	v := fakeView{"a": 2.0, "b": 0.9}
	q := adaptive.Query{Keys: []string{"a", "b"}}
	dec1, r1 := New(cfg).Decide(q, v)
	dec2, r2 := New(cfg).Decide(q, v)
	if dec1 != dec2 || r1 != r2 {
		t.Fatalf("decisions should be identical; got %+v/%s vs %+v/%s", dec1, r1, dec2, r2)
	}
}
