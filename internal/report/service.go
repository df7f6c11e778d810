// Package report computes and exports area reports for an AOI against the
// current reference-data snapshot.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/agro-zonal/internal/aggregate"
	"github.com/mohammed-shakir/agro-zonal/internal/aggregate/raster"
	"github.com/mohammed-shakir/agro-zonal/internal/aggregate/vector"
	"github.com/mohammed-shakir/agro-zonal/internal/cache/keys"
	"github.com/mohammed-shakir/agro-zonal/internal/cache/reportcache"
	"github.com/mohammed-shakir/agro-zonal/internal/composer"
	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/core/observability"
	"github.com/mohammed-shakir/agro-zonal/internal/export"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
	"github.com/mohammed-shakir/agro-zonal/internal/hotness"
	mylog "github.com/mohammed-shakir/agro-zonal/internal/logger"
	"github.com/mohammed-shakir/agro-zonal/internal/mapper"
	h3mapper "github.com/mohammed-shakir/agro-zonal/internal/mapper/h3"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata"
	"github.com/mohammed-shakir/agro-zonal/pkg/adaptive"
)

var (
	ErrTimeout      = errors.New("report computation timed out")
	ErrUnknownLayer = errors.New("unknown layer")
	ErrEmptyAOI     = errors.New("aoi has no rings")
)

const DefaultTimeout = 30 * time.Second

type Request struct {
	// Rings are grouped into polygons: a ring inside an earlier ring is its
	// hole. Ignored when Polygons is set.
	Rings    []model.Ring
	Polygons model.MultiPolygon
	// Layers defaults to every layer kind.
	Layers  []model.LayerKind
	Timeout time.Duration
	Raster  aggregate.RasterOptions
}

// Snapshots is satisfied by *refdata.Manager.
type Snapshots interface {
	Current() *refdata.Snapshot
}

// Heat feeds the adaptive shared-cache TTL. Every field must be set for it
// to take effect.
type Heat struct {
	Tracker   hotness.Interface
	Decider   adaptive.Decider
	Mapper    mapper.Interface
	Res       int
	ParentRes int
}

type Options struct {
	Geometry       geometry.Options
	DefaultTimeout time.Duration
	DefaultProduct string
	Schemas        map[model.LayerKind]model.LayerSchema
	Clock          func() time.Time
	Cache          *reportcache.Cache
	// RemoteTTL applies when Heat is not configured; 0 keeps reports local.
	RemoteTTL time.Duration
	Heat      Heat
	Logger    *slog.Logger
}

type Service struct {
	data    Snapshots
	opt     Options
	engines map[model.LayerKind]aggregate.Interface
	logger  *slog.Logger
}

func New(data Snapshots, opt Options) *Service {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Geometry == (geometry.Options{}) {
		opt.Geometry = geometry.DefaultOptions()
	}
	if opt.DefaultTimeout <= 0 {
		opt.DefaultTimeout = DefaultTimeout
	}
	if opt.DefaultProduct == "" {
		opt.DefaultProduct = raster.ProductNDVI
	}
	if opt.Clock == nil {
		opt.Clock = time.Now
	}
	vec := vector.New(opt.Logger, opt.Schemas)
	return &Service{
		data: data,
		opt:  opt,
		engines: map[model.LayerKind]aggregate.Interface{
			model.LayerSoil:            vec,
			model.LayerRainfall:        vec,
			model.LayerCropSuitability: vec,
			model.LayerRaster:          raster.New(opt.Logger),
		},
		logger: opt.Logger.With("component", "report"),
	}
}

// ComputeAreaReport validates the AOI before touching reference data, then
// aggregates every requested layer concurrently against one pinned snapshot.
func (s *Service) ComputeAreaReport(ctx context.Context, req Request) (model.AreaReport, model.AOI, error) {
	start := time.Now()
	rep, aoi, outcome, err := s.compute(ctx, req)
	observability.ObserveReport(outcome, time.Since(start))
	return rep, aoi, err
}

func (s *Service) compute(ctx context.Context, req Request) (model.AreaReport, model.AOI, string, error) {
	aoi, err := s.normalize(req)
	if err != nil {
		return model.AreaReport{}, model.AOI{}, "invalid_aoi", err
	}
	layers, err := resolveLayers(req.Layers)
	if err != nil {
		return model.AreaReport{}, aoi, "invalid_request", err
	}
	snap := s.data.Current()
	if snap == nil {
		return model.AreaReport{}, aoi, "not_ready", refdata.ErrNotLoaded
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.opt.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = mylog.WithAOIKey(ctx, aoi.Key)

	opts := req.Raster
	if opts.Product == "" {
		opts.Product = s.opt.DefaultProduct
	}
	run := func(ctx context.Context) (model.AreaReport, error) {
		return s.aggregate(ctx, aoi, layers, snap, opts)
	}

	var rep model.AreaReport
	outcome := "computed"
	if s.opt.Cache == nil {
		rep, err = run(ctx)
	} else {
		var co reportcache.Outcome
		key := keys.ReportKey(aoi.Key, layers, optionsKey(layers, opts), snap.Generation)
		rep, co, err = s.opt.Cache.Get(ctx, key, s.remoteTTL(ctx, aoi), run)
		outcome = string(co)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.WarnContext(ctx, "report timed out", "timeout", timeout, "layers", len(layers))
			return model.AreaReport{}, aoi, "timeout", fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return model.AreaReport{}, aoi, "canceled", err
		}
		s.logger.ErrorContext(ctx, "report failed", "err", err)
		return model.AreaReport{}, aoi, "error", err
	}
	s.logger.DebugContext(ctx, "report ready", "outcome", outcome, "generation", rep.Generation, "area_ha", rep.AOIAreaHa)
	return rep, aoi, outcome, nil
}

func (s *Service) normalize(req Request) (model.AOI, error) {
	if len(req.Polygons) > 0 {
		return geometry.NormalizePolygons(req.Polygons, s.opt.Geometry)
	}
	if len(req.Rings) == 0 {
		return model.AOI{}, ErrEmptyAOI
	}
	return geometry.Normalize(req.Rings, s.opt.Geometry)
}

func resolveLayers(in []model.LayerKind) ([]model.LayerKind, error) {
	if len(in) == 0 {
		return slices.Clone(model.AllLayers), nil
	}
	out := make([]model.LayerKind, 0, len(in))
	for _, k := range in {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownLayer, int(k))
		}
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

// raster options only shape raster output, so vector-only requests share a key
func optionsKey(layers []model.LayerKind, o aggregate.RasterOptions) string {
	if !slices.Contains(layers, model.LayerRaster) {
		return ""
	}
	return o.Key()
}

func (s *Service) aggregate(ctx context.Context, aoi model.AOI, layers []model.LayerKind, snap *refdata.Snapshot, opts aggregate.RasterOptions) (model.AreaReport, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]model.AggregatedLayer, len(layers))
	for i, k := range layers {
		eng := s.engines[k]
		g.Go(func() error {
			lctx := mylog.WithLayer(gctx, k.String())
			r, err := eng.Aggregate(lctx, aggregate.Request{AOI: aoi, Layer: k, Data: snap, Raster: opts})
			if err != nil {
				return fmt.Errorf("layer %s: %w", k, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.AreaReport{}, err
	}

	rep := composer.Compose(composer.Input{
		AOI:         aoi,
		Requested:   layers,
		Layers:      results,
		Versions:    snap.Versions(),
		Generation:  snap.Generation,
		GeneratedAt: s.opt.Clock(),
	})
	if err := composer.Validate(rep); err != nil {
		s.logger.WarnContext(ctx, "report invariant violated", "err", err)
	}
	return rep, nil
}

func (s *Service) remoteTTL(ctx context.Context, aoi model.AOI) time.Duration {
	h := s.opt.Heat
	if h.Tracker == nil || h.Decider == nil || h.Mapper == nil {
		return s.opt.RemoteTTL
	}
	cells, err := h3mapper.AOICells(h.Mapper, aoi, h.Res, h.ParentRes)
	if err != nil {
		s.logger.DebugContext(ctx, "no hotness cell for aoi", "err", err)
		return s.opt.RemoteTTL
	}
	for _, c := range cells {
		h.Tracker.Inc(c)
	}
	dec, reason := h.Decider.Decide(adaptive.Query{Keys: cells}, h.Tracker)
	observability.IncTTLDecision(string(reason))
	if dec.Type == adaptive.DecisionBypass {
		return 0
	}
	return dec.TTL
}

// OnSnapshotSwap drops cached reports of the replaced generation. Register
// it with refdata.Manager.OnSwap.
func (s *Service) OnSnapshotSwap(old, cur *refdata.Snapshot) {
	if s.opt.Cache == nil || old == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.opt.Cache.Purge(ctx, keys.GenerationPrefix(old.Generation))
	s.logger.Info("report cache invalidated", "old_generation", old.Generation, "generation", cur.Generation)
}

// ExportReport renders a computed report; it returns the payload and its
// content type.
func (s *Service) ExportReport(rep model.AreaReport, aoi model.AOI, f export.Format) ([]byte, string, error) {
	b, err := export.Encode(rep, aoi, f)
	observability.IncExport(f.String(), err)
	if err != nil {
		return nil, "", err
	}
	return b, f.ContentType(), nil
}
