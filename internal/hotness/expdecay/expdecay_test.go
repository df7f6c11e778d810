package expdecay

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTrackerForTest(hl time.Duration, fc *fakeClock) *Tracker {
	if fc == nil {
		fc = &fakeClock{}
		fc.Set(time.Unix(0, 0).UTC())
	}
	return NewWithClock(hl, fc.Now)
}

func almostEq(t *testing.T, got, want, eps float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("got=%g want=%g (eps=%g)", got, want, eps)
	}
}

func TestIncAndScore_AccumulatesImmediately(t *testing.T) {
	fc := &fakeClock{}
	fc.Set(time.Unix(0, 0).UTC())
	tr := newTrackerForTest(time.Minute, fc)

	key := "872a1008bffffff"

	tr.Inc(key)
	almostEq(t, tr.Score(key), 1.0, 1e-9)

	tr.Inc(key)
	almostEq(t, tr.Score(key), 2.0, 1e-9)

	tr.Inc(key)
	almostEq(t, tr.Score(key), 3.0, 1e-9)
}

func TestHalfLife_DecaysByHalf(t *testing.T) {
	hl := 2 * time.Second
	fc := &fakeClock{}
	fc.Set(time.Unix(0, 0).UTC())
	tr := newTrackerForTest(hl, fc)

	key := "872a1008bffffff"

	tr.Inc(key)
	almostEq(t, tr.Score(key), 1.0, 1e-9)

	fc.Add(hl)
	got := tr.Score(key)
	// after one half-life, score should be halved
	almostEq(t, got, 0.5, 1e-6)

	fc.Add(hl)
	got = tr.Score(key)
	almostEq(t, got, 0.25, 1e-6)
}

func TestConcurrency_ManyIncSameCell(t *testing.T) {
	fc := &fakeClock{}
	fc.Set(time.Unix(0, 0).UTC())
	tr := newTrackerForTest(1*time.Minute, fc)

	key := "field-cluster"
	const N = 256

	var wg sync.WaitGroup
	wg.Add(N)
	for range N {
		go func() {
			tr.Inc(key)
			wg.Done()
		}()
	}
	wg.Wait()

	// ensure thread safety, total score should be N
	got := tr.Score(key)
	almostEq(t, got, N, 1e-9)
}

func TestReset_OnlySelectedCells(t *testing.T) {
	fc := &fakeClock{}
	fc.Set(time.Unix(0, 0).UTC())
	tr := newTrackerForTest(30*time.Second, fc)

	a := "aoi-A"
	b := "aoi-B"

	tr.Inc(a)
	tr.Inc(b)
	if tr.Score(a) <= 0 || tr.Score(b) <= 0 {
		t.Fatalf("precondition failed: scores must be > 0")
	}

	tr.Reset(a)

	if got := tr.Score(a); got != 0 {
		t.Fatalf("reset failed for %s: got %g want 0", a, got)
	}
	if got := tr.Score(b); got <= 0 {
		t.Fatalf("unexpected reset of %s: got %g want >0", b, got)
	}
}

func TestDecayed_Edges(t *testing.T) {
	cases := []struct {
		score             float64
		elapsed, halfLife time.Duration
		want              float64
	}{
		{0, 10 * time.Second, time.Minute, 0},
		{5, 0, time.Minute, 5},
		{5, -time.Second, time.Minute, 5},
		{5, 10 * time.Second, 0, 5},
		{8, 3 * time.Minute, time.Minute, 1},
	}
	for _, tc := range cases {
		almostEq(t, decayed(tc.score, tc.elapsed, tc.halfLife), tc.want, 1e-12)
	}
}

func TestPrune_DropsDecayedKeys(t *testing.T) {
	fc := &fakeClock{}
	fc.Set(time.Unix(0, 0).UTC())
	tr := newTrackerForTest(time.Second, fc)

	tr.Inc("old")
	fc.Add(10 * time.Second)
	tr.Inc("fresh")

	if n := tr.Prune(0.01); n != 1 {
		t.Fatalf("pruned=%d want 1", n)
	}
	if tr.Size() != 1 || tr.Score("fresh") == 0 {
		t.Fatalf("fresh key must survive; size=%d", tr.Size())
	}
}

func TestPrune_SingleRequestFadesAfterFewHalfLives(t *testing.T) {
	fc := &fakeClock{}
	fc.Set(time.Unix(0, 0).UTC())
	tr := newTrackerForTest(time.Minute, fc)

	tr.Inc("872a1008bffffff")
	fc.Add(4 * time.Minute)
	if n := tr.Prune(PruneBelow); n != 0 {
		t.Fatalf("pruned=%d after 4 half-lives, want 0", n)
	}
	fc.Add(time.Minute)
	if n := tr.Prune(PruneBelow); n != 1 {
		t.Fatalf("pruned=%d after 5 half-lives, want 1", n)
	}
}

func TestJanitor_PrunesUntilCancelled(t *testing.T) {
	fc := &fakeClock{}
	fc.Set(time.Unix(0, 0).UTC())
	tr := newTrackerForTest(time.Second, fc)
	tr.Inc("cold")
	fc.Add(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tr.Janitor(ctx, 5*time.Millisecond, nil)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for tr.Size() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("janitor never pruned, size=%d", tr.Size())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor ignored cancellation")
	}
}
