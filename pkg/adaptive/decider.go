// Package adaptive decides how long a computed report stays in the shared
// cache tier based on how hot its region is.
package adaptive

import "time"

type HotnessView interface {
	Score(key string) float64
}

// Query names the hotness keys of one request, finest first.
type Query struct {
	Keys []string
}

type DecisionType int

const (
	DecisionBypass DecisionType = iota
	DecisionFill
)

type Reason string

const (
	ReasonNoKeys  Reason = "no_keys"
	ReasonCold    Reason = "cold"
	ReasonWarm    Reason = "warm"
	ReasonHot     Reason = "hot"
	ReasonDefault Reason = "default_fill"
)

type Decision struct {
	Type DecisionType
	TTL  time.Duration
}

type Decider interface {
	Decide(q Query, view HotnessView) (Decision, Reason)
}
