// Package config reads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type KafkaCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool

	// DataSource selects the reference-data backend: "file" or "postgres".
	DataSource  string
	DataDir     string
	DatabaseURL string

	RedisAddr          string
	ReportCacheEnabled bool
	ReportCacheLocal   int
	ReportTimeout      time.Duration
	CacheOpTimeout     time.Duration

	TTLCold      time.Duration
	TTLWarm      time.Duration
	TTLHot       time.Duration
	HotThreshold float64
	HotHalfLife  time.Duration
	H3Res        int
	H3ParentRes  int

	Kafka KafkaCfg
}

func FromEnv() Config {
	res := clampRes(getint("H3_RES", 8))
	parent := clampRes(getint("H3_PARENT_RES", res-2))
	if parent > res {
		parent = res
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),

		DataSource:  strings.ToLower(getenv("DATA_SOURCE", "file")),
		DataDir:     getenv("DATA_DIR", "./data"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		RedisAddr:          getenv("REDIS_ADDR", ""),
		ReportCacheEnabled: getbool("REPORT_CACHE_ENABLED", true),
		ReportCacheLocal:   getint("REPORT_CACHE_LOCAL_SIZE", 1024),
		ReportTimeout:      getduration("REPORT_TIMEOUT_DEFAULT", 30*time.Second),
		CacheOpTimeout:     getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		TTLCold:      getduration("REPORT_TTL_COLD", 0),
		TTLWarm:      getduration("REPORT_TTL_WARM", 5*time.Minute),
		TTLHot:       getduration("REPORT_TTL_HOT", time.Hour),
		HotThreshold: getfloat("HOT_THRESHOLD", 2.0),
		HotHalfLife:  getduration("HOT_HALF_LIFE", 10*time.Minute),
		H3Res:        res,
		H3ParentRes:  parent,

		Kafka: KafkaCfg{
			Enabled: getbool("KAFKA_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "data-versions"),
			GroupID: getenv("KAFKA_GROUP_ID", "zonal-report"),
		},
	}
}

func clampRes(r int) int {
	return min(max(r, 0), 15)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
