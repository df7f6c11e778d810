// Package kafkapublisher announces republished reference layers on the
// data-version topic.
package kafkapublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/agro-zonal/internal/invalidation"
)

type Publisher struct {
	topic  string
	prod   sarama.SyncProducer
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher dials the brokers with a synchronous producer that waits for
// all in-sync replicas.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Retry.Max = 5

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafkapublisher: create producer: %w", err)
	}
	return NewWithProducer(prod, topic, logger), nil
}

func NewWithProducer(prod sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{topic: topic, prod: prod, logger: logger, now: time.Now}
}

// Publish sends one event keyed by layer so that versions of a layer stay
// ordered on a single partition. A zero TS is stamped with the current time.
func (p *Publisher) Publish(ctx context.Context, ev invalidation.Event) (partition int32, offset int64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if ev.TS.IsZero() {
		ev.TS = p.now().UTC()
	}
	if err := ev.Validate(); err != nil {
		return 0, 0, fmt.Errorf("kafkapublisher: invalid event: %w", err)
	}
	ev.Layer = ev.Kind().String()

	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("kafkapublisher: marshal: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strings.ToLower(ev.Layer)),
		Value: sarama.ByteEncoder(b),
	}
	partition, offset, err = p.prod.SendMessage(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("kafkapublisher: send: %w", err)
	}
	p.logger.Info("data version published",
		"layer", ev.Layer, "version", ev.Version, "partition", partition, "offset", offset)
	return partition, offset, nil
}

func (p *Publisher) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("kafkapublisher: close producer: %w", err)
	}
	return nil
}
