package kafkaconsumer

import (
	"strings"
	"time"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	RetryBackoff        time.Duration
	DedupeSize          int
	// ProcessAttempts bounds in-place retries of one message before the
	// claim is abandoned for redelivery.
	ProcessAttempts int
	ProcessBackoff  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Brokers:             []string{"localhost:9092"},
		Topic:               "data-versions",
		GroupID:             "zonal-report",
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: true,
		RetryBackoff:        2 * time.Second,
		ProcessAttempts:     3,
		ProcessBackoff:      500 * time.Millisecond,
		DedupeSize:          1024,
	}
}

func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
