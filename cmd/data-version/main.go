// Command data-version announces that a reference layer was republished so
// running report servers reload it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/agro-zonal/internal/core/config"
	"github.com/mohammed-shakir/agro-zonal/internal/invalidation"
	"github.com/mohammed-shakir/agro-zonal/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/agro-zonal/internal/invalidation/kafkapublisher"
	"github.com/mohammed-shakir/agro-zonal/internal/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	fs := flag.NewFlagSet("data-version", flag.ContinueOnError)
	fs.SetOutput(stderr)
	brokers := fs.String("brokers", cfg.Kafka.Brokers, "comma-separated Kafka brokers")
	topic := fs.String("topic", cfg.Kafka.Topic, "data-version topic")
	layer := fs.String("layer", "", "republished layer (soil, rainfall, crop_suitability, raster)")
	version := fs.Uint64("version", 0, "new layer version (> 0)")
	source := fs.String("source", "", "optional publisher name")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ev := invalidation.Event{Version: *version, Layer: *layer, Source: *source, TS: time.Now().UTC()}
	if err := ev.Validate(); err != nil {
		fmt.Fprintf(stderr, "data-version: %v\n", err)
		return 2
	}

	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Console: true, Component: "data-version"}, stderr)
	log := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, err := kafkapublisher.NewPublisher(kafkaconsumer.SplitCSV(*brokers), *topic, log)
	if err != nil {
		fmt.Fprintf(stderr, "data-version: %v\n", err)
		return 1
	}
	defer func() { _ = pub.Close() }()

	part, off, err := pub.Publish(ctx, ev)
	if err != nil {
		fmt.Fprintf(stderr, "data-version: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s v%d -> %s[%d]@%d\n", ev.Kind(), ev.Version, *topic, part, off)
	return 0
}
