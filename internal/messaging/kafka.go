package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer-group session tuning, matched to the broker-side defaults the
// analytics consumer expects.
const (
	kafkaSessionTimeout    = 30 * time.Second
	kafkaHeartbeatInterval = 3 * time.Second
	kafkaRebalanceTimeout  = 60 * time.Second
	kafkaNackBackoff       = time.Second
)

// KafkaPublisher adapts a kafka-go writer to the watermill Publisher
// interface. The message's partition key metadata becomes the Kafka message
// key, so the hash balancer keeps events for one code on one partition.
type KafkaPublisher struct {
	brokers []string
	logger  *zap.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers.
func NewKafkaPublisher(brokers []string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		brokers: brokers,
		logger:  logger,
		writers: make(map[string]*kafka.Writer),
	}
}

func (p *KafkaPublisher) Publish(topic string, msgs ...*message.Message) error {
	writer := p.writerFor(topic)

	kafkaMsgs := make([]kafka.Message, 0, len(msgs))

	for _, msg := range msgs {
		kafkaMsg := kafka.Message{Value: msg.Payload}
		if key := msg.Metadata.Get(PartitionKeyMetadata); key != "" {
			kafkaMsg.Key = []byte(key)
		}

		kafkaMsgs = append(kafkaMsgs, kafkaMsg)
	}

	return writer.WriteMessages(context.Background(), kafkaMsgs...)
}

func (p *KafkaPublisher) writerFor(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = writer

	return writer
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error

	for _, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.writers = make(map[string]*kafka.Writer)

	return firstErr
}

// KafkaSubscriber adapts a kafka-go consumer-group reader to the watermill
// Subscriber interface. Offsets are committed only after the delivered
// message is acked; a nack redelivers the same message after a short
// backoff, so processing is at-least-once and ordered per partition.
type KafkaSubscriber struct {
	brokers []string
	group   string
	logger  *zap.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
	closed  bool
}

// NewKafkaSubscriber creates a subscriber joining the given consumer group.
func NewKafkaSubscriber(brokers []string, group string, logger *zap.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{
		brokers: brokers,
		group:   group,
		logger:  logger,
	}
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           s.brokers,
		GroupID:           s.group,
		Topic:             topic,
		SessionTimeout:    kafkaSessionTimeout,
		HeartbeatInterval: kafkaHeartbeatInterval,
		RebalanceTimeout:  kafkaRebalanceTimeout,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = reader.Close()

		return nil, context.Canceled
	}

	s.readers = append(s.readers, reader)
	s.wg.Add(1)
	s.mu.Unlock()

	out := make(chan *message.Message)

	go s.readLoop(ctx, reader, out)

	return out, nil
}

func (s *KafkaSubscriber) readLoop(ctx context.Context, reader *kafka.Reader, out chan<- *message.Message) {
	defer s.wg.Done()
	defer close(out)

	for {
		fetched, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("kafka fetch failed", zap.Error(err))
			}

			return
		}

		if !s.deliverUntilAcked(ctx, reader, fetched, out) {
			return
		}
	}
}

// deliverUntilAcked hands the fetched message to the consumer, redelivering
// on nack until it is acked or the context ends. Only an ack commits the
// offset. Returns false when the subscription should stop.
func (s *KafkaSubscriber) deliverUntilAcked(
	ctx context.Context,
	reader *kafka.Reader,
	fetched kafka.Message,
	out chan<- *message.Message,
) bool {
	for {
		msg := message.NewMessage(string(fetched.Key)+"-"+kafkaMessageID(fetched), fetched.Value)
		msg.Metadata.Set(PartitionKeyMetadata, string(fetched.Key))
		msg.SetContext(ctx)

		select {
		case <-ctx.Done():
			return false
		case out <- msg:
		}

		select {
		case <-ctx.Done():
			return false
		case <-msg.Acked():
			if err := reader.CommitMessages(ctx, fetched); err != nil && ctx.Err() == nil {
				s.logger.Error("kafka offset commit failed", zap.Error(err))
			}

			return true
		case <-msg.Nacked():
			select {
			case <-ctx.Done():
				return false
			case <-time.After(kafkaNackBackoff):
			}
		}
	}
}

func kafkaMessageID(msg kafka.Message) string {
	return fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
}

func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	var firstErr error

	for _, reader := range s.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.wg.Wait()

	return firstErr
}

var (
	_ message.Publisher  = (*KafkaPublisher)(nil)
	_ message.Subscriber = (*KafkaSubscriber)(nil)
)
