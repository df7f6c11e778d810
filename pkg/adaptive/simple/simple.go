package simple

import (
	"time"

	"github.com/mohammed-shakir/agro-zonal/pkg/adaptive"
)

type Config struct {
	Threshold float64
	// HotFactor multiplies Threshold to get the hot band; 4 when unset.
	HotFactor float64
	TTLCold   time.Duration
	TTLWarm   time.Duration
	TTLHot    time.Duration
}

type SimpleDecider struct {
	cfg Config
}

var _ adaptive.Decider = (*SimpleDecider)(nil)

func New(cfg Config) *SimpleDecider {
	if cfg.HotFactor <= 1 {
		cfg.HotFactor = 4
	}
	return &SimpleDecider{cfg: cfg}
}

// Decide picks a TTL band from the hottest key. Below Threshold the report
// is kept local only, unless TTLCold is set.
func (d *SimpleDecider) Decide(q adaptive.Query, view adaptive.HotnessView) (adaptive.Decision, adaptive.Reason) {
	maxScore := 0.0
	seen := false
	for _, k := range q.Keys {
		s := view.Score(k)
		if !seen || s > maxScore {
			maxScore = s
		}
		seen = true
	}
	if !seen {
		return d.cold(adaptive.ReasonNoKeys)
	}
	if d.cfg.Threshold <= 0 {
		return d.fill(d.cfg.TTLWarm, adaptive.ReasonDefault)
	}

	switch {
	case maxScore >= d.cfg.HotFactor*d.cfg.Threshold && d.cfg.TTLHot > 0:
		return d.fill(d.cfg.TTLHot, adaptive.ReasonHot)
	case maxScore >= d.cfg.Threshold && d.cfg.TTLWarm > 0:
		return d.fill(d.cfg.TTLWarm, adaptive.ReasonWarm)
	case maxScore >= d.cfg.Threshold:
		return d.fill(d.cfg.TTLCold, adaptive.ReasonWarm)
	}
	return d.cold(adaptive.ReasonCold)
}

func (d *SimpleDecider) cold(r adaptive.Reason) (adaptive.Decision, adaptive.Reason) {
	if d.cfg.TTLCold > 0 {
		return adaptive.Decision{Type: adaptive.DecisionFill, TTL: d.cfg.TTLCold}, r
	}
	return adaptive.Decision{Type: adaptive.DecisionBypass}, r
}

func (d *SimpleDecider) fill(ttl time.Duration, r adaptive.Reason) (adaptive.Decision, adaptive.Reason) {
	if ttl <= 0 {
		return adaptive.Decision{Type: adaptive.DecisionBypass}, r
	}
	return adaptive.Decision{Type: adaptive.DecisionFill, TTL: ttl}, r
}
