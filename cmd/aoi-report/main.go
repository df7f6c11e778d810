// Command aoi-report computes one area report from a directory of reference
// layers and writes the export to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mohammed-shakir/agro-zonal/internal/aggregate"
	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
	"github.com/mohammed-shakir/agro-zonal/internal/export"
	"github.com/mohammed-shakir/agro-zonal/internal/geometry"
	"github.com/mohammed-shakir/agro-zonal/internal/logger"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata/filesource"
	"github.com/mohammed-shakir/agro-zonal/internal/report"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	data    string
	aoi     string
	layers  string
	format  string
	timeout time.Duration
	product string
	from    string
	to      string
	level   string
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aoi-report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.StringVar(&o.data, "data", "./data", "directory of reference GeoJSON layers")
	fs.StringVar(&o.aoi, "aoi", "", "GeoJSON file holding the area of interest (- for stdin)")
	fs.StringVar(&o.layers, "layers", "", "comma-separated layers; empty means all")
	fs.StringVar(&o.format, "format", "csv", "export format: csv, geojson or md")
	fs.DurationVar(&o.timeout, "timeout", report.DefaultTimeout, "report timeout")
	fs.StringVar(&o.product, "product", "", "raster product (default ndvi)")
	fs.StringVar(&o.from, "from", "", "earliest raster acquisition (RFC 3339 or date)")
	fs.StringVar(&o.to, "to", "", "latest raster acquisition (RFC 3339 or date)")
	fs.StringVar(&o.level, "log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	zl := logger.Build(logger.Config{Level: o.level, Console: true, Component: "aoi-report"}, stderr)
	log := logger.NewSlog(&zl)

	if err := generate(context.Background(), o, stdin, stdout, log); err != nil {
		fmt.Fprintf(stderr, "aoi-report: %v\n", err)
		var gerr *geometry.GeometryError
		if errors.As(err, &gerr) || errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func generate(ctx context.Context, o options, in io.Reader, out io.Writer, log *slog.Logger) error {
	if o.aoi == "" {
		return fmt.Errorf("%w: -aoi is required", errUsage)
	}
	f, err := export.ParseFormat(o.format)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	req, err := buildRequest(o, in)
	if err != nil {
		return err
	}

	mgr := refdata.NewManager(filesource.New(o.data), log)
	if _, err := mgr.Reload(ctx); err != nil {
		return err
	}
	svc := report.New(mgr, report.Options{DefaultTimeout: o.timeout, Logger: log})

	rep, aoi, err := svc.ComputeAreaReport(ctx, req)
	if err != nil {
		return err
	}
	b, _, err := svc.ExportReport(rep, aoi, f)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

func buildRequest(o options, in io.Reader) (report.Request, error) {
	var raw []byte
	var err error
	if o.aoi == "-" {
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(o.aoi)
	}
	if err != nil {
		return report.Request{}, fmt.Errorf("read aoi: %w", err)
	}
	mp, err := geometry.FromGeoJSON(raw)
	if err != nil {
		return report.Request{}, err
	}
	req := report.Request{Polygons: mp, Timeout: o.timeout}

	if s := strings.TrimSpace(o.layers); s != "" {
		for name := range strings.SplitSeq(s, ",") {
			k, err := model.ParseLayerKind(name)
			if err != nil {
				return report.Request{}, fmt.Errorf("%w: %w", errUsage, err)
			}
			req.Layers = append(req.Layers, k)
		}
	}

	req.Raster = aggregate.RasterOptions{Product: o.product}
	if o.from != "" {
		if req.Raster.From, err = filesource.ParseAcquired(o.from); err != nil {
			return report.Request{}, fmt.Errorf("%w: -from: %w", errUsage, err)
		}
	}
	if o.to != "" {
		if req.Raster.To, err = filesource.ParseAcquired(o.to); err != nil {
			return report.Request{}, fmt.Errorf("%w: -to: %w", errUsage, err)
		}
	}
	return req, nil
}
