package messaging

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// PartitionKeyMetadata is the message metadata field carrying the ordering
// key. Transports that partition (Kafka) use it as the message key so events
// for one short code stay on one partition.
const PartitionKeyMetadata = "partition_key"

// Publish is a function that publishes a typed event.
type Publish[T any] func(event *T) error

// NewPublishFunc creates a typed publish function for a specific topic. The
// key function provides the per-event ordering key.
func NewPublishFunc[T any](publisher message.Publisher, topic string, key func(*T) string) Publish[T] {
	return func(event *T) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		if key != nil {
			msg.Metadata.Set(PartitionKeyMetadata, key(event))
		}

		return publisher.Publish(topic, msg)
	}
}

// Backoff policy for the retrying publisher.
const (
	retryInitialBackoff = 300 * time.Millisecond
	retryMaxAttempts    = 8
)

// RetryPublisher wraps a publisher with bounded exponential retry. After the
// attempts are exhausted the message is dropped: callers on the redirect
// path are never blocked indefinitely by a saturated bus.
type RetryPublisher struct {
	inner   message.Publisher
	logger  *zap.Logger
	onDrop  func()
	backoff time.Duration
	max     int
}

// NewRetryPublisher creates a retrying publisher. onDrop is invoked once per
// message abandoned after the final attempt; nil is allowed.
func NewRetryPublisher(inner message.Publisher, logger *zap.Logger, onDrop func()) *RetryPublisher {
	return &RetryPublisher{
		inner:   inner,
		logger:  logger,
		onDrop:  onDrop,
		backoff: retryInitialBackoff,
		max:     retryMaxAttempts,
	}
}

func (p *RetryPublisher) Publish(topic string, msgs ...*message.Message) error {
	var lastErr error

	delay := p.backoff

	for attempt := 1; attempt <= p.max; attempt++ {
		lastErr = p.inner.Publish(topic, msgs...)
		if lastErr == nil {
			return nil
		}

		if attempt < p.max {
			time.Sleep(delay)
			delay *= 2
		}
	}

	if p.onDrop != nil {
		p.onDrop()
	}

	p.logger.Error("dropping messages after publish retries exhausted",
		zap.String("topic", topic),
		zap.Int("messages", len(msgs)),
		zap.Error(lastErr),
	)

	return nil
}

func (p *RetryPublisher) Close() error {
	return p.inner.Close()
}

var _ message.Publisher = (*RetryPublisher)(nil)
