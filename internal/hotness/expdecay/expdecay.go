// Package expdecay keeps per-region request heat that halves every HalfLife.
// Keys are H3 cells of report AOIs; a region that stops being requested
// fades out and is eventually pruned.
package expdecay

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/agro-zonal/internal/hotness"
)

const (
	numShards = 64

	// PruneBelow is the heat under which a region is forgotten: a single
	// request decays to it after a little over four half-lives.
	PruneBelow = 0.05
)

type Tracker struct {
	HalfLife time.Duration

	now    func() time.Time
	shards [numShards]shard
}

type shard struct {
	mu   sync.RWMutex
	heat map[string]entry
}

// entry is the heat of a region as of the last time it was touched.
type entry struct {
	score float64
	at    time.Time
}

func (e entry) heatAt(now time.Time, halfLife time.Duration) float64 {
	return decayed(e.score, now.Sub(e.at), halfLife)
}

var _ hotness.Interface = (*Tracker)(nil)

func New(halfLife time.Duration) *Tracker {
	return NewWithClock(halfLife, time.Now)
}

func NewWithClock(halfLife time.Duration, now func() time.Time) *Tracker {
	if halfLife <= 0 {
		halfLife = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	t := &Tracker{HalfLife: halfLife, now: now}
	for i := range t.shards {
		t.shards[i].heat = make(map[string]entry)
	}
	return t
}

// Inc records one request for the region.
func (t *Tracker) Inc(key string) {
	if key == "" {
		return
	}
	now := t.now()
	s := t.shardFor(key)
	s.mu.Lock()
	e := s.heat[key]
	s.heat[key] = entry{score: e.heatAt(now, t.HalfLife) + 1, at: now}
	s.mu.Unlock()
}

// Score is the region's heat decayed to now; unknown regions are cold.
func (t *Tracker) Score(key string) float64 {
	if key == "" {
		return 0
	}
	s := t.shardFor(key)
	s.mu.RLock()
	e, ok := s.heat[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.heatAt(t.now(), t.HalfLife)
}

func (t *Tracker) Reset(keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		s := t.shardFor(key)
		s.mu.Lock()
		delete(s.heat, key)
		s.mu.Unlock()
	}
}

func (t *Tracker) Size() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		n += len(s.heat)
		s.mu.RUnlock()
	}
	return n
}

// Prune forgets regions whose heat fell below minScore and returns how many
// were removed.
func (t *Tracker) Prune(minScore float64) int {
	now := t.now()
	removed := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for k, e := range s.heat {
			if e.heatAt(now, t.HalfLife) < minScore {
				delete(s.heat, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Janitor prunes regions below PruneBelow every interval until ctx ends.
// A non-positive interval defaults to one half-life.
func (t *Tracker) Janitor(ctx context.Context, every time.Duration, log *slog.Logger) {
	if every <= 0 {
		every = t.HalfLife
	}
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if n := t.Prune(PruneBelow); n > 0 && log != nil {
				log.Debug("hotness pruned", "removed", n, "tracked", t.Size())
			}
		}
	}
}

// decayed halves score once per elapsed half-life.
func decayed(score float64, elapsed, halfLife time.Duration) float64 {
	if score == 0 || elapsed <= 0 || halfLife <= 0 {
		return score
	}
	return score * math.Exp2(-elapsed.Seconds()/halfLife.Seconds())
}

func (t *Tracker) shardFor(key string) *shard {
	return &t.shards[xxhash.Sum64String(key)%numShards]
}
