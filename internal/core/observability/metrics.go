package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	reportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "area_reports_total",
			Help: "Area reports by outcome (computed, hit_local, hit_remote, miss, shared, invalid_aoi, invalid_request, not_ready, timeout, canceled, error).",
		},
		[]string{"outcome"},
	)

	reportDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "area_report_duration_seconds",
			Help:    "End-to-end area report computation time.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
	)

	layerDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "layer_aggregation_duration_seconds",
			Help:    "Per-layer aggregation time.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		},
		[]string{"layer", "outcome"},
	)

	layerCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "layer_candidates",
			Help:    "Spatial index candidates per layer aggregation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"layer"},
	)

	layerWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layer_warnings_total",
			Help: "Non-fatal warnings recorded while aggregating a layer.",
		},
		[]string{"layer", "kind"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_cache_results_total",
			Help: "Report cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Redis operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0002, 2, 14),
		},
		[]string{"op", "result"},
	)

	reloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refdata_reloads_total",
			Help: "Reference data reloads by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	reloadDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refdata_reload_duration_seconds",
			Help:    "Reference data load and index build time.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"source"},
	)

	generation = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refdata_generation",
			Help: "Generation number of the published reference snapshot.",
		},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Data-version events by layer and outcome.",
		},
		[]string{"layer", "outcome"},
	)

	invalidationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invalidation_duration_seconds",
			Help:    "Time to apply a data-version event.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	hotKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hotness_tracked_keys",
			Help: "Keys currently held by the hotness tracker.",
		},
		[]string{"tier"},
	)

	ttlDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_ttl_decisions_total",
			Help: "Shared-tier TTL decisions by reason.",
		},
		[]string{"reason"},
	)

	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_exports_total",
			Help: "Report exports by format and outcome.",
		},
		[]string{"format", "outcome"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func ObserveReport(outcome string, d time.Duration) {
	reportsTotal.WithLabelValues(outcome).Inc()
	reportDurationSeconds.Observe(d.Seconds())
}

func ObserveLayer(layer string, err error, d time.Duration) {
	layerDurationSeconds.WithLabelValues(layer, result(err)).Observe(d.Seconds())
}

func ObserveCandidates(layer string, n int) {
	layerCandidates.WithLabelValues(layer).Observe(float64(n))
}

func AddLayerWarnings(layer, kind string, n int) {
	if n <= 0 {
		return
	}
	layerWarningsTotal.WithLabelValues(layer, kind).Add(float64(n))
}

// IncCacheResult records hit_local, hit_remote, miss or shared.
func IncCacheResult(outcome string) {
	cacheResults.WithLabelValues(outcome).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpDurationSeconds.WithLabelValues(op, result(err)).Observe(durationSeconds)
}

func ObserveReload(source, outcome string, d time.Duration) {
	reloadsTotal.WithLabelValues(source, outcome).Inc()
	reloadDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
}

func SetGeneration(g uint64) {
	generation.Set(float64(g))
}

func ObserveInvalidation(layer, outcome string, d time.Duration) {
	invalidationsTotal.WithLabelValues(layer, outcome).Inc()
	invalidationDurationSeconds.Observe(d.Seconds())
}

func SetHotKeys(tier string, n int) {
	hotKeys.WithLabelValues(tier).Set(float64(n))
}

func IncTTLDecision(reason string) {
	ttlDecisions.WithLabelValues(reason).Inc()
}

func IncExport(format string, err error) {
	exportsTotal.WithLabelValues(format, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
