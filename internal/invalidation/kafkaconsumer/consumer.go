// Package kafkaconsumer reloads reference data when a data-version event
// announces a newer layer.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/agro-zonal/internal/core/observability"
	"github.com/mohammed-shakir/agro-zonal/internal/invalidation"
	mylog "github.com/mohammed-shakir/agro-zonal/internal/logger"
	"github.com/mohammed-shakir/agro-zonal/internal/refdata"
)

const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeLoaded    = "already_loaded"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Reloader is satisfied by *refdata.Manager.
type Reloader interface {
	Current() *refdata.Snapshot
	Reload(ctx context.Context) (*refdata.Snapshot, error)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	data   Reloader
	seen   *versionDedupe
}

func New(cfg Config, logger *slog.Logger, data Reloader) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger.With("component", "kafka_consumer"),
		data:   data,
		seen:   newVersionDedupe(cfg.DedupeSize),
	}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.data == nil {
		return errors.New("kafkaconsumer: missing reloader")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{
		process:  c.ProcessOne,
		attempts: c.cfg.ProcessAttempts,
		backoff:  c.cfg.ProcessBackoff,
	}
	c.logger.Info("data-version consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && ctx.Err() == nil {
			c.logger.Error("consumer error", "err", err, "topic", c.cfg.Topic)
		}
		select {
		case <-ctx.Done():
			c.logger.Info("data-version consumer shutting down")
			return nil
		case <-time.After(c.cfg.RetryBackoff):
		}
	}
}

// ProcessOne applies one event. Malformed events are logged and skipped;
// a failed reload returns an error so the message is redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	ctx = mylog.WithComponent(ctx, "kafka_consumer")

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return c.reject(ctx, msg, start, fmt.Errorf("json decode: %w", err))
	}
	if err := ev.Validate(); err != nil {
		return c.reject(ctx, msg, start, err)
	}

	kind := ev.Kind()
	layer := kind.String()
	ctx = mylog.WithLayer(ctx, layer)

	if !c.seen.isNew(layer, ev.Version) {
		obs.ObserveInvalidation(layer, OutcomeDuplicate, time.Since(start))
		c.logger.DebugContext(ctx, "stale data-version event", "version", ev.Version)
		return nil
	}
	if cur := c.data.Current(); cur != nil && cur.Version(kind) >= ev.Version {
		c.seen.record(layer, ev.Version)
		obs.ObserveInvalidation(layer, OutcomeLoaded, time.Since(start))
		c.logger.DebugContext(ctx, "version already loaded", "version", ev.Version, "loaded", cur.Version(kind))
		return nil
	}

	snap, err := c.data.Reload(ctx)
	if err != nil {
		obs.ObserveInvalidation(layer, OutcomeError, time.Since(start))
		c.logger.ErrorContext(ctx, "reload after data-version event failed",
			"version", ev.Version, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return fmt.Errorf("reload for %s v%d: %w", layer, ev.Version, err)
	}
	c.seen.record(layer, ev.Version)
	obs.ObserveInvalidation(layer, OutcomeApplied, time.Since(start))

	if got := snap.Version(kind); got < ev.Version {
		c.logger.WarnContext(ctx, "source is behind announced version", "version", ev.Version, "loaded", got)
	}
	c.logger.InfoContext(ctx, "reference data reloaded",
		"event", "invalidation", "version", ev.Version, "generation", snap.Generation)
	return nil
}

func (c *Consumer) reject(ctx context.Context, msg *sarama.ConsumerMessage, start time.Time, err error) error {
	obs.ObserveInvalidation("unknown", OutcomeRejected, time.Since(start))
	c.logger.ErrorContext(ctx, "invalid data-version event",
		"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
	return nil
}
