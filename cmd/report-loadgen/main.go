// Command report-loadgen drives POST /reports with a Zipf-skewed pool of AOIs
// so a few regions run hot, and writes per-request samples plus a summary.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/logger"
)

type Config struct {
	TargetURL      string
	Layers         string
	Concurrency    int
	Duration       time.Duration
	ZipfS          float64
	ZipfV          float64
	AOICount       int
	RadiusM        float64
	OutputPrefix   string
	RequestTimeout time.Duration
	Seed           int64
}

func loadConfig(args []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("report-loadgen", flag.ContinueOnError)
	fs.StringVar(&cfg.TargetURL, "target", "http://localhost:8090/reports", "report endpoint")
	fs.StringVar(&cfg.Layers, "layers", "", "comma-separated layers; empty means all")
	fs.IntVar(&cfg.Concurrency, "concurrency", 16, "concurrent workers")
	fs.DurationVar(&cfg.Duration, "duration", 60*time.Second, "test duration")
	fs.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	fs.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	fs.IntVar(&cfg.AOICount, "aois", 128, "distinct AOIs in the pool")
	fs.Float64Var(&cfg.RadiusM, "radius", 500, "buffer radius in metres for each AOI")
	fs.StringVar(&cfg.OutputPrefix, "out", "results/reports", "output file prefix (JSON/CSV)")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", 30*time.Second, "per-request timeout")
	fs.Int64Var(&cfg.Seed, "seed", 0, "workload seed; 0 picks one from the clock")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		return Config{}, fmt.Errorf("zipf parameters out of range: s=%v v=%v", cfg.ZipfS, cfg.ZipfV)
	}
	if cfg.AOICount < 1 || cfg.Concurrency < 1 {
		return Config{}, fmt.Errorf("aois and concurrency must be positive")
	}
	return cfg, nil
}

type point struct {
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
	RadiusM float64 `json:"radius_m"`
}

type requestBody struct {
	Point  point    `json:"point"`
	Layers []string `json:"layers,omitempty"`
}

// makeAOIs puts the first quarter (at least 8) of the pool around a few
// farming districts and scatters the rest.
func makeAOIs(count int, radiusM float64, r *rand.Rand) []point {
	centers := [][2]float64{
		{13.40, 55.75}, // Skåne
		{15.60, 58.40}, // Östergötland
		{16.80, 59.60}, // Mälardalen
		{13.90, 58.30}, // Skaraborg
	}
	out := make([]point, 0, count)
	hot := min(count, max(8, count/4))
	for i := range hot {
		c := centers[i%len(centers)]
		out = append(out, point{
			Lon:     c[0] + (r.Float64()-0.5)*0.2,
			Lat:     c[1] + (r.Float64()-0.5)*0.2,
			RadiusM: radiusM,
		})
	}
	for len(out) < count {
		out = append(out, point{
			Lon:     12 + r.Float64()*6,
			Lat:     55.5 + r.Float64()*5,
			RadiusM: radiusM,
		})
	}
	return out
}

func splitLayers(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	AOIIndex  int
}

type summary struct {
	StartTime     time.Time      `json:"start"`
	EndTime       time.Time      `json:"end"`
	DurationSec   float64        `json:"duration_sec"`
	TotalRequests int64          `json:"total"`
	SuccessCount  int64          `json:"success"`
	ErrorCount    int64          `json:"errors"`
	ByStatus      map[string]int `json:"by_status"`
	ThroughputRPS float64        `json:"throughput_rps"`
	P50Ms         float64        `json:"p50_ms"`
	P95Ms         float64        `json:"p95_ms"`
	P99Ms         float64        `json:"p99_ms"`
	Concurrency   int            `json:"concurrency"`
	ZipfS         float64        `json:"zipf_s"`
	ZipfV         float64        `json:"zipf_v"`
	AOIs          int            `json:"aois"`
	TargetURL     string         `json:"target"`
	Layers        string         `json:"layers"`
}

// collector folds samples into a summary and mirrors them to CSV.
type collector struct {
	w        *csv.Writer
	total    int64
	success  int64
	errors   int64
	byStatus map[string]int
	latMs    []float64
}

func newCollector(w io.Writer) *collector {
	c := &collector{w: csv.NewWriter(w), byStatus: make(map[string]int)}
	_ = c.w.Write([]string{"timestamp", "latency_ms", "status", "error", "aoi_idx"})
	return c
}

func (c *collector) add(s sample) {
	c.total++
	ms := float64(s.Latency.Microseconds()) / 1000.0
	if s.ErrorMsg == "" && s.Status >= 200 && s.Status < 300 {
		c.success++
		c.latMs = append(c.latMs, ms)
	} else {
		c.errors++
	}
	c.byStatus[strconv.Itoa(s.Status)]++
	_ = c.w.Write([]string{
		s.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(ms, 'f', 3, 64),
		strconv.Itoa(s.Status),
		s.ErrorMsg,
		strconv.Itoa(s.AOIIndex),
	})
}

func (c *collector) flush() error {
	c.w.Flush()
	return c.w.Error()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	zl := logger.Build(logger.Config{Level: "info", Console: true, Component: "report-loadgen"}, os.Stderr)
	log := logger.NewSlog(&zl)

	cfg, err := loadConfig(args)
	if err != nil {
		log.Error("bad flags", "err", err)
		return 2
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Error("mkdir results", "err", err)
		return 1
	}
	prefix := fmt.Sprintf("%s_%s", cfg.OutputPrefix, time.Now().UTC().Format("20060102_150405Z"))

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	aois := makeAOIs(cfg.AOICount, cfg.RadiusM, rand.New(rand.NewSource(seed)))
	layers := splitLayers(cfg.Layers)

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          1024,
			MaxIdleConnsPerHost:   256,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   4 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Error("open csv", "err", err)
		return 1
	}
	defer func() { _ = csvFile.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	log.Info("loadgen start",
		"target", cfg.TargetURL, "duration", cfg.Duration, "concurrency", cfg.Concurrency,
		"zipf_s", cfg.ZipfS, "zipf_v", cfg.ZipfV, "aois", len(aois), "seed", seed)

	start := time.Now()
	col := drive(ctx, cfg, httpClient, aois, layers, seed, csvFile)
	end := time.Now()
	if err := col.flush(); err != nil {
		log.Warn("csv flush", "err", err)
	}

	slices.Sort(col.latMs)
	elapsed := end.Sub(start).Seconds()
	sum := summary{
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		DurationSec:   elapsed,
		TotalRequests: col.total,
		SuccessCount:  col.success,
		ErrorCount:    col.errors,
		ByStatus:      col.byStatus,
		ThroughputRPS: float64(col.total) / elapsed,
		P50Ms:         percentile(col.latMs, 50),
		P95Ms:         percentile(col.latMs, 95),
		P99Ms:         percentile(col.latMs, 99),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		AOIs:          len(aois),
		TargetURL:     cfg.TargetURL,
		Layers:        cfg.Layers,
	}
	if err := writeSummary(jsonPath, sum); err != nil {
		log.Warn("write summary", "err", err)
	}
	log.Info("done",
		"total", sum.TotalRequests, "success", sum.SuccessCount, "errors", sum.ErrorCount,
		"rps", sum.ThroughputRPS, "p50_ms", sum.P50Ms, "p95_ms", sum.P95Ms, "p99_ms", sum.P99Ms,
		"samples", csvPath, "summary", jsonPath)
	return 0
}

// drive runs the workers until ctx ends and returns the folded samples.
func drive(ctx context.Context, cfg Config, client *http.Client, aois []point, layers []string, seed int64, out io.Writer) *collector {
	samples := make(chan sample, 4096)
	done := make(chan *collector, 1)
	go func() {
		col := newCollector(out)
		for s := range samples {
			col.add(s)
		}
		done <- col
	}()

	imax := uint64(len(aois)) - 1
	var wg sync.WaitGroup
	for id := range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			zipf := rand.NewZipf(rand.New(rand.NewSource(seed+int64(id)+1)), cfg.ZipfS, cfg.ZipfV, imax)
			for ctx.Err() == nil {
				idx := int(zipf.Uint64())
				s := post(ctx, client, cfg.TargetURL, requestBody{Point: aois[idx], Layers: layers})
				s.AOIIndex = idx
				select {
				case samples <- s:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
	close(samples)
	return <-done
}

func post(ctx context.Context, client *http.Client, target string, body requestBody) sample {
	b, _ := json.Marshal(body)
	start := time.Now()
	s := sample{Timestamp: start}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(b))
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	s.Latency = time.Since(start)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	s.Status = resp.StatusCode
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.ErrorMsg = "status=" + strconv.Itoa(resp.StatusCode)
	}
	return s
}

func writeSummary(path string, s summary) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
