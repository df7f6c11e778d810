package refdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/core/observability"
)

var ErrNotLoaded = errors.New("reference data not loaded")

// SwapHook runs after a new snapshot is published. old is nil on first load.
type SwapHook func(old, cur *Snapshot)

type Manager struct {
	src    Source
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	gen   uint64
	hooks []SwapHook
	cur   atomic.Pointer[Snapshot]
}

func NewManager(src Source, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{src: src, logger: logger, now: time.Now}
}

// Current returns the published snapshot, or nil before the first load.
func (m *Manager) Current() *Snapshot { return m.cur.Load() }

func (m *Manager) Ready() bool { return m.cur.Load() != nil }

// Readiness reports whether a snapshot is published and its generation.
func (m *Manager) Readiness() (bool, uint64) {
	s := m.cur.Load()
	if s == nil {
		return false, 0
	}
	return true, s.Generation
}

func (m *Manager) OnSwap(h SwapHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, h)
	m.mu.Unlock()
}

// Reload builds a new generation from the source and publishes it. Reloads
// are serialized; readers are never blocked.
func (m *Manager) Reload(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	ds, err := m.src.Load(ctx)
	if err != nil {
		observability.ObserveReload(m.src.Name(), "error", time.Since(start))
		return nil, fmt.Errorf("load %s: %w", m.src.Name(), err)
	}
	m.gen++
	snap := NewSnapshot(m.gen, m.src.Name(), ds, m.now().UTC())
	old := m.cur.Swap(snap)
	observability.ObserveReload(m.src.Name(), "ok", time.Since(start))
	observability.SetGeneration(snap.Generation)

	counts := snap.Counts()
	m.logger.Info("reference data loaded",
		"source", m.src.Name(),
		"generation", snap.Generation,
		"features", counts.Features,
		"footprints", counts.Footprints,
		"duplicates", counts.Duplicates,
		"rejected", len(ds.Rejected),
		"took_ms", time.Since(start).Milliseconds(),
	)
	for _, w := range ds.Rejected {
		m.logger.Warn("reference record rejected", "feature_id", w.FeatureID, "detail", w.Detail)
	}
	for _, h := range m.hooks {
		h(old, snap)
	}
	return snap, nil
}
