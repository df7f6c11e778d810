// Package router decodes report requests and maps service errors to HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/aggregate"
	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/core/observability"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata"
	"github.com/mohammed-shakir/agro-zonal/internal/report"
)

const (
	ReportsRoute = "/reports"
	maxBodyBytes = 4 << 20
	maxTimeout   = 5 * time.Minute

	// nginx convention for a client that went away mid-request
	statusClientClosed = 499
)

var ErrBadRequest = errors.New("bad request")

// ReportHandler is satisfied by *report.Service.
type ReportHandler interface {
	ComputeAreaReport(ctx context.Context, req report.Request) (model.AreaReport, model.AOI, error)
}

type pointBody struct {
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
	RadiusM float64 `json:"radius_m"`
}

type rasterBody struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Product string    `json:"product"`
}

type reportBody struct {
	AOI       json.RawMessage `json:"aoi"`
	Point     *pointBody      `json:"point"`
	Layers    []string        `json:"layers"`
	TimeoutMs int64           `json:"timeout_ms"`
	Raster    *rasterBody     `json:"raster"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HandleReport decodes the body, runs the report and writes it as JSON.
func HandleReport(logger *slog.Logger, h ReportHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, ReportsRoute, sw.code, time.Since(start).Seconds())
		}()

		req, warn, err := ParseReportRequest(http.MaxBytesReader(sw, r.Body, maxBodyBytes))
		if warn != "" {
			logger.WarnContext(r.Context(), warn)
		}
		if err != nil {
			writeError(sw, err)
			return
		}

		rep, _, err := h.ComputeAreaReport(r.Context(), req)
		if err != nil {
			code := writeError(sw, err)
			if code >= http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "report request failed", "status", code, "err", err)
			}
			return
		}
		writeJSON(sw, http.StatusOK, rep)
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// ParseReportRequest decodes a report body. When both aoi and point are
// given the polygon wins and a warning is returned.
func ParseReportRequest(body io.Reader) (report.Request, string, error) {
	var warn string
	var b reportBody
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return report.Request{}, "", fmt.Errorf("%w: decode body: %w", ErrBadRequest, err)
	}

	hasAOI := len(b.AOI) > 0 && string(b.AOI) != "null"
	if hasAOI && b.Point != nil {
		warn = "both aoi and point supplied; preferring aoi"
		b.Point = nil
	}

	var req report.Request
	switch {
	case hasAOI:
		mp, err := geometry.FromGeoJSON(b.AOI)
		if err != nil {
			return report.Request{}, warn, fmt.Errorf("%w: aoi: %w", ErrBadRequest, err)
		}
		req.Polygons = mp
	case b.Point != nil:
		ring, err := geometry.PointBuffer(model.Coord{Lon: b.Point.Lon, Lat: b.Point.Lat}, b.Point.RadiusM, 0)
		if err != nil {
			return report.Request{}, warn, err
		}
		req.Rings = []model.Ring{ring}
	default:
		return report.Request{}, warn, fmt.Errorf("%w: one of aoi or point is required", ErrBadRequest)
	}

	for _, s := range b.Layers {
		k, err := model.ParseLayerKind(strings.TrimSpace(s))
		if err != nil {
			return report.Request{}, warn, fmt.Errorf("%w: %q", report.ErrUnknownLayer, s)
		}
		req.Layers = append(req.Layers, k)
	}

	if b.TimeoutMs < 0 {
		return report.Request{}, warn, fmt.Errorf("%w: timeout_ms must not be negative", ErrBadRequest)
	}
	req.Timeout = min(time.Duration(b.TimeoutMs)*time.Millisecond, maxTimeout)

	if b.Raster != nil {
		if !b.Raster.From.IsZero() && !b.Raster.To.IsZero() && b.Raster.To.Before(b.Raster.From) {
			return report.Request{}, warn, fmt.Errorf("%w: raster window ends before it starts", ErrBadRequest)
		}
		req.Raster = aggregate.RasterOptions{From: b.Raster.From, To: b.Raster.To, Product: strings.TrimSpace(b.Raster.Product)}
	}
	return req, warn, nil
}

// StatusFor maps a report error to its HTTP status and a stable code.
func StatusFor(err error) (int, string) {
	var gerr *geometry.GeometryError
	switch {
	case errors.As(err, &gerr):
		return http.StatusBadRequest, gerr.Kind.String()
	case errors.Is(err, report.ErrUnknownLayer):
		return http.StatusBadRequest, "unknown_layer"
	case errors.Is(err, report.ErrEmptyAOI), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, report.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, refdata.ErrNotLoaded):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, context.Canceled):
		return statusClientClosed, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) int {
	code, kind := StatusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, code, errorBody{Error: msg, Code: kind})
	return code
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
