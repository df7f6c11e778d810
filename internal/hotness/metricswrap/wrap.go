// Package metricswrap publishes tracker size and samples hot-key log lines.
package metricswrap

import (
	"fmt"
	"log/slog"

	xx "github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/agro-zonal/internal/core/observability"
	"github.com/mohammed-shakir/agro-zonal/internal/hotness"
)

type Sizer interface{ Size() int }

type Options struct {
	Tier string
	// HotThreshold enables the hot-key log line when > 0.
	HotThreshold float64
	// LogSample is the fraction of keys, chosen by hash, that may log.
	LogSample float64
	Logger    *slog.Logger
}

type WithMetrics struct {
	inner hotness.Interface
	opt   Options
}

var _ hotness.Interface = (*WithMetrics)(nil)

func New(inner hotness.Interface, opt Options) *WithMetrics {
	if opt.Tier == "" {
		opt.Tier = "aoi"
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &WithMetrics{inner: inner, opt: opt}
}

func (w *WithMetrics) Inc(key string) {
	w.inner.Inc(key)
	if w.opt.HotThreshold > 0 {
		score := w.inner.Score(key)
		if score >= w.opt.HotThreshold && shouldLog(w.opt.LogSample, key) {
			w.opt.Logger.Info("hot region above threshold",
				"event", "hotness_threshold",
				"score", score,
				"tier", w.opt.Tier,
				"key_hash", fmt.Sprintf("%08x", xx.Sum64String(key)))
		}
	}
	w.publishSize()
}

func (w *WithMetrics) Score(key string) float64 {
	return w.inner.Score(key)
}

func (w *WithMetrics) Reset(keys ...string) {
	w.inner.Reset(keys...)
	w.publishSize()
}

func (w *WithMetrics) publishSize() {
	if s, ok := w.inner.(Sizer); ok {
		observability.SetHotKeys(w.opt.Tier, s.Size())
	}
}

func shouldLog(sample float64, key string) bool {
	if sample <= 0 {
		return false
	}
	if sample >= 1 {
		return true
	}
	const denom = 10000 // 0.01 => 100/10000
	threshold := uint64(sample*denom + 0.5)
	if threshold == 0 {
		return false
	}
	h := xx.Sum64String(key)
	return (h % denom) < threshold
}
