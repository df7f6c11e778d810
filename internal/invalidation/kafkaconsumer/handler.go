package kafkaconsumer

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

// groupHandler processes one claim in offset order. A message is retried in
// place up to attempts times; if it still fails the claim ends unmarked so
// the group redelivers it after the consumer's backoff.
type groupHandler struct {
	process  messageProcessor
	attempts int
	backoff  time.Duration
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim context done: %w", ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.processWithRetry(ctx, msg); err != nil {
				return fmt.Errorf("process failed (topic=%s, part=%d, off=%d): %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func (h *groupHandler) processWithRetry(ctx context.Context, msg *sarama.ConsumerMessage) error {
	attempts := max(h.attempts, 1)
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.backoff << (i - 1)):
			}
		}
		if err = h.process(ctx, msg); err == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d attempt(s): %w", attempts, err)
}
