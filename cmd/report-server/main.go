package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/agro-zonal/internal/cache"
	"github.com/mohammed-shakir/agro-zonal/internal/cache/redisstore"
	"github.com/mohammed-shakir/agro-zonal/internal/cache/reportcache"
	"github.com/mohammed-shakir/agro-zonal/internal/core/config"
	"github.com/mohammed-shakir/agro-zonal/internal/core/observability"
	"github.com/mohammed-shakir/agro-zonal/internal/core/server"
	"github.com/mohammed-shakir/agro-zonal/internal/hotness/expdecay"
	"github.com/mohammed-shakir/agro-zonal/internal/hotness/metricswrap"
	"github.com/mohammed-shakir/agro-zonal/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/agro-zonal/internal/logger"
	h3mapper "github.com/mohammed-shakir/agro-zonal/internal/mapper/h3"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata/filesource"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata/pgsource"
	"github.com/mohammed-shakir/agro-zonal/internal/report"
	"github.com/mohammed-shakir/agro-zonal/pkg/adaptive/simple"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Service:   "report-server",
		Component: "main",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting report-server",
		"addr", cfg.Addr,
		"version", Version,
		"data_source", cfg.DataSource,
		"redis", cfg.RedisAddr != "",
		"kafka", cfg.Kafka.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		appLog.Error("reference source setup failed", "err", err)
		return 1
	}
	defer closeSrc()

	mgr := refdata.NewManager(src, appLog)
	if _, err := mgr.Reload(ctx); err != nil {
		appLog.Error("initial reference load failed", "err", err)
		return 1
	}

	opt := report.Options{
		DefaultTimeout: cfg.ReportTimeout,
		RemoteTTL:      cfg.TTLWarm,
		Logger:         appLog,
	}

	if cfg.ReportCacheEnabled {
		var remote cache.Interface
		if cfg.RedisAddr != "" {
			rc, err := redisstore.New(ctx, cfg.RedisAddr)
			if err != nil {
				appLog.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
				return 1
			}
			defer func() { _ = rc.Close() }()
			remote = rc
		}
		rcfg := reportcache.DefaultConfig()
		rcfg.LocalSize = cfg.ReportCacheLocal
		rcfg.RemoteTimeout = cfg.CacheOpTimeout
		rcfg.ComputeTimeout = cfg.ReportTimeout
		opt.Cache, err = reportcache.New(rcfg, remote, appLog)
		if err != nil {
			appLog.Error("report cache setup failed", "err", err)
			return 1
		}

		tracker := expdecay.New(cfg.HotHalfLife)
		go tracker.Janitor(ctx, cfg.HotHalfLife, appLog)
		opt.Heat = report.Heat{
			Tracker: metricswrap.New(tracker, metricswrap.Options{
				HotThreshold: cfg.HotThreshold,
				LogSample:    0.05,
				Logger:       appLog,
			}),
			Decider: simple.New(simple.Config{
				Threshold: cfg.HotThreshold,
				TTLCold:   cfg.TTLCold,
				TTLWarm:   cfg.TTLWarm,
				TTLHot:    cfg.TTLHot,
			}),
			Mapper:    h3mapper.New(),
			Res:       cfg.H3Res,
			ParentRes: cfg.H3ParentRes,
		}
	}

	svc := report.New(mgr, opt)
	mgr.OnSwap(svc.OnSnapshotSwap)

	if cfg.Kafka.Enabled {
		kcfg := kafkaconsumer.DefaultConfig()
		kcfg.Brokers = kafkaconsumer.SplitCSV(cfg.Kafka.Brokers)
		kcfg.Topic = cfg.Kafka.Topic
		kcfg.GroupID = cfg.Kafka.GroupID
		consumer := kafkaconsumer.New(kcfg, appLog, mgr)
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("data-version consumer stopped", "err", err)
			}
		}()
	}

	if err := server.Run(ctx, cfg, appLog, svc, mgr); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openSource(ctx context.Context, cfg config.Config) (refdata.Source, func(), error) {
	switch cfg.DataSource {
	case "file", "":
		return filesource.New(cfg.DataDir), func() {}, nil
	case "postgres", "postgis":
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres source")
		}
		pg, err := pgsource.Open(ctx, cfg.DatabaseURL, pgsource.DefaultTables())
		if err != nil {
			return nil, nil, err
		}
		return pg, func() {
			if err := pg.Close(); err != nil {
				slog.Warn("close postgres source", "err", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown DATA_SOURCE %q", cfg.DataSource)
	}
}
