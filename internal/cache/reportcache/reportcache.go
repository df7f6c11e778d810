// Package reportcache memoizes area reports in a local LRU tier backed by an
// optional shared tier, with at most one computation in flight per key.
package reportcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/agro-zonal/internal/cache"
	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/core/observability"
)

type Outcome string

const (
	HitLocal  Outcome = "hit_local"
	HitRemote Outcome = "hit_remote"
	Miss      Outcome = "miss"
	Shared    Outcome = "shared"
)

type Config struct {
	LocalSize     int
	RemoteTimeout time.Duration
	// ComputeTimeout stands in for the deadline of a caller that has none.
	ComputeTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{LocalSize: 1024, RemoteTimeout: 250 * time.Millisecond, ComputeTimeout: 2 * time.Minute}
}

type ComputeFunc func(ctx context.Context) (model.AreaReport, error)

// Cache hands out shared reports; callers must treat them as read-only.
type Cache struct {
	cfg    Config
	local  *lru.Cache[string, model.AreaReport]
	remote cache.Interface
	sf     singleflight.Group
	logger *slog.Logger

	mu      sync.Mutex
	seq     uint64
	flights map[string]*flight
}

// flight is the detached context shared by every caller waiting on one key.
// It is cancelled when the last waiter leaves or at the latest waiter
// deadline, whichever comes first.
type flight struct {
	id       string
	ctx      context.Context
	cancel   context.CancelCauseFunc
	timer    *time.Timer
	deadline time.Time
	waiters  int
}

type result struct {
	report  model.AreaReport
	outcome Outcome
}

// New builds a cache. remote may be nil.
func New(cfg Config, remote cache.Interface, logger *slog.Logger) (*Cache, error) {
	def := DefaultConfig()
	if cfg.LocalSize <= 0 {
		cfg.LocalSize = def.LocalSize
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = def.RemoteTimeout
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = def.ComputeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	local, err := lru.New[string, model.AreaReport](cfg.LocalSize)
	if err != nil {
		return nil, fmt.Errorf("local cache: %w", err)
	}
	return &Cache{cfg: cfg, local: local, remote: remote, logger: logger.With("component", "reportcache"), flights: map[string]*flight{}}, nil
}

// Get returns the cached report for key or runs compute. remoteTTL <= 0
// keeps the result out of the shared tier. Concurrent callers share one
// computation; it runs until the latest caller deadline and is cancelled as
// soon as no caller is waiting for it.
func (c *Cache) Get(ctx context.Context, key string, remoteTTL time.Duration, compute ComputeFunc) (model.AreaReport, Outcome, error) {
	if r, ok := c.local.Get(key); ok {
		observability.IncCacheResult(string(HitLocal))
		return r, HitLocal, nil
	}

	f := c.join(ctx, key)
	defer c.leave(key, f)

	ran := false
	ch := c.sf.DoChan(f.id, func() (any, error) {
		ran = true
		if r, ok := c.local.Peek(key); ok {
			return result{report: r, outcome: HitLocal}, nil
		}
		if r, ok := c.readRemote(f.ctx, key); ok {
			c.local.Add(key, r)
			return result{report: r, outcome: HitRemote}, nil
		}
		r, err := compute(f.ctx)
		if err != nil {
			if cause := context.Cause(f.ctx); cause != nil && !errors.Is(err, cause) {
				err = fmt.Errorf("%w: %w", err, cause)
			}
			return nil, err
		}
		c.local.Add(key, r)
		if remoteTTL > 0 {
			c.writeRemote(f.ctx, key, r, remoteTTL)
		}
		return result{report: r, outcome: Miss}, nil
	})

	select {
	case <-ctx.Done():
		return model.AreaReport{}, "", fmt.Errorf("wait for report: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			// the flight may stop on this caller's own deadline first
			if ctx.Err() != nil {
				return model.AreaReport{}, "", fmt.Errorf("wait for report: %w", ctx.Err())
			}
			return model.AreaReport{}, "", res.Err
		}
		out := res.Val.(result)
		if !ran && out.outcome == Miss {
			out.outcome = Shared
		}
		observability.IncCacheResult(string(out.outcome))
		return out.report, out.outcome, nil
	}
}

// join registers the caller on the live flight for key, starting one if
// needed, and extends the flight deadline to cover the caller.
func (c *Cache) join(ctx context.Context, key string) *flight {
	now := time.Now()
	dl, ok := ctx.Deadline()
	if !ok {
		dl = now.Add(c.cfg.ComputeTimeout)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.flights[key]
	if f == nil || f.ctx.Err() != nil || !now.Before(f.deadline) {
		c.seq++
		fctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
		f = &flight{id: key + "#" + strconv.FormatUint(c.seq, 10), ctx: fctx, cancel: cancel, deadline: dl}
		f.timer = time.AfterFunc(dl.Sub(now), func() { cancel(context.DeadlineExceeded) })
		c.flights[key] = f
	} else if dl.After(f.deadline) {
		f.deadline = dl
		f.timer.Reset(dl.Sub(now))
	}
	f.waiters++
	return f
}

func (c *Cache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.timer.Stop()
	f.cancel(context.Canceled)
	if c.flights[key] == f {
		delete(c.flights, key)
	}
}

func (c *Cache) readRemote(ctx context.Context, key string) (model.AreaReport, bool) {
	if c.remote == nil {
		return model.AreaReport{}, false
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RemoteTimeout)
	defer cancel()
	b, ok, err := c.remote.Get(rctx, key)
	if err != nil {
		c.logger.Warn("shared cache read failed", "key", key, "err", err)
		return model.AreaReport{}, false
	}
	if !ok {
		return model.AreaReport{}, false
	}
	var r model.AreaReport
	if err := json.Unmarshal(b, &r); err != nil {
		c.logger.Warn("discarding undecodable cached report", "key", key, "err", err)
		return model.AreaReport{}, false
	}
	return r, true
}

func (c *Cache) writeRemote(ctx context.Context, key string, r model.AreaReport, ttl time.Duration) {
	b, err := json.Marshal(r)
	if err != nil {
		c.logger.Warn("encode report for shared cache", "key", key, "err", err)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, c.cfg.RemoteTimeout)
	defer cancel()
	if err := c.remote.Set(wctx, key, b, ttl); err != nil {
		c.logger.Warn("shared cache write failed", "key", key, "err", err)
	}
}

// Purge drops the local tier and, when prefix is non-empty, removes matching
// keys from the shared tier.
func (c *Cache) Purge(ctx context.Context, prefix string) {
	n := c.local.Len()
	c.local.Purge()
	removed := 0
	if c.remote != nil && prefix != "" {
		var err error
		removed, err = c.remote.DelPrefix(ctx, prefix)
		if err != nil {
			c.logger.Warn("shared cache purge failed", "prefix", prefix, "err", err)
		}
	}
	c.logger.Info("report cache purged", "local_entries", n, "remote_entries", removed, "prefix", prefix)
}

func (c *Cache) Len() int { return c.local.Len() }
