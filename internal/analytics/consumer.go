package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// DeadLetter receives events that can never be applied: undecodable payloads
// and events outside the tolerance window. The core defines the contract;
// the default sink just logs.
type DeadLetter interface {
	Route(ctx context.Context, payload []byte, reason string) error
}

// LogDeadLetter logs dead-lettered events and drops them.
type LogDeadLetter struct {
	logger *zap.Logger
}

// NewLogDeadLetter creates the logging dead-letter sink.
func NewLogDeadLetter(logger *zap.Logger) *LogDeadLetter {
	return &LogDeadLetter{logger: logger}
}

func (d *LogDeadLetter) Route(_ context.Context, payload []byte, reason string) error {
	d.logger.Warn("hit event dead-lettered",
		zap.String("reason", reason),
		zap.ByteString("payload", payload),
	)

	return nil
}

// Metrics receives consumer outcome counts. Implemented by the process-wide
// registry; the zero value of consumers without metrics uses a no-op.
type Metrics interface {
	HitApplied()
	HitFailed()
	HitDeadLettered()
}

type nopMetrics struct{}

func (nopMetrics) HitApplied()       {}
func (nopMetrics) HitFailed()        {}
func (nopMetrics) HitDeadLettered() {}

// ConsumerConfig tunes the batching behavior of the analytics consumer.
type ConsumerConfig struct {
	Topic         string
	BatchSize     int
	MaxInFlight   int
	FlushInterval time.Duration
}

func (c *ConsumerConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}

	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 5
	}

	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
}

// Consumer drains hit events from the bus into the analytics store. Events
// are applied in bounded batches with a capped number of concurrent flushes;
// each event within a batch is applied independently so one poisoned event
// never halts the rest. Messages are acked only after successful
// application, nacked on transient store failure so the bus redelivers.
type Consumer struct {
	subscriber message.Subscriber
	store      Store
	dead       DeadLetter
	metrics    Metrics
	logger     *zap.Logger
	cfg        ConsumerConfig

	now      func() time.Time
	inFlight chan struct{}
	flushes  sync.WaitGroup
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewConsumer creates an analytics consumer.
func NewConsumer(
	subscriber message.Subscriber,
	store Store,
	dead DeadLetter,
	metrics Metrics,
	logger *zap.Logger,
	cfg ConsumerConfig,
) *Consumer {
	cfg.applyDefaults()

	if dead == nil {
		dead = NewLogDeadLetter(logger)
	}

	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Consumer{
		subscriber: subscriber,
		store:      store,
		dead:       dead,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		inFlight:   make(chan struct{}, cfg.MaxInFlight),
		done:       make(chan struct{}),
	}
}

// Start subscribes to the hits topic and begins consuming.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.cfg.Topic)
	if err != nil {
		return err
	}

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*message.Message, 0, c.cfg.BatchSize)

	dispatch := func() {
		if len(batch) == 0 {
			return
		}

		c.dispatchFlush(ctx, batch)
		batch = make([]*message.Message, 0, c.cfg.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			// Pick up messages already delivered before the cancellation.
			for pending := true; pending; {
				select {
				case msg, ok := <-msgs:
					if ok {
						batch = append(batch, msg)
					} else {
						pending = false
					}
				default:
					pending = false
				}
			}

			dispatch()

			return
		case <-ticker.C:
			dispatch()
		case msg, ok := <-msgs:
			if !ok {
				dispatch()

				return
			}

			batch = append(batch, msg)
			if len(batch) >= c.cfg.BatchSize {
				dispatch()
			}
		}
	}
}

// dispatchFlush blocks until a flush slot frees up, bounding the number of
// concurrent store batches.
func (c *Consumer) dispatchFlush(ctx context.Context, batch []*message.Message) {
	c.inFlight <- struct{}{}
	c.flushes.Add(1)

	go func() {
		defer func() {
			<-c.inFlight
			c.flushes.Done()
		}()

		for _, msg := range batch {
			c.processMessage(ctx, msg)
		}
	}()
}

func (c *Consumer) processMessage(ctx context.Context, msg *message.Message) {
	var event HitEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.deadLetter(ctx, msg, "undecodable payload")

		return
	}

	if err := event.Validate(c.now().UTC()); err != nil {
		c.deadLetter(ctx, msg, err.Error())

		return
	}

	if err := c.apply(ctx, &event); err != nil {
		c.metrics.HitFailed()
		c.logger.Error("failed to apply hit event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	c.metrics.HitApplied()
	msg.Ack()
}

// apply runs the per-event store batch. The store's increments are
// commutative, so a retry after partial application is safe.
func (c *Consumer) apply(ctx context.Context, event *HitEvent) error {
	if err := c.store.ApplyHit(ctx, event); err != nil {
		return err
	}

	if err := c.store.TouchAccessTimes(ctx, event.Code, event.Timestamp); err != nil {
		return err
	}

	return c.store.RecordUniqueVisitor(ctx, event.Code, event.Day(), VisitorHash(event.IP, event.UserAgent))
}

// deadLetter routes an unprocessable message and acks it so the bus does not
// redeliver something that can never succeed.
func (c *Consumer) deadLetter(ctx context.Context, msg *message.Message, reason string) {
	c.metrics.HitDeadLettered()

	if err := c.dead.Route(ctx, msg.Payload, reason); err != nil {
		c.logger.Error("dead-letter sink failed", zap.String("reason", reason), zap.Error(err))
		msg.Nack()

		return
	}

	msg.Ack()
}

// Shutdown drains in-flight flushes and stops the consumer.
func (c *Consumer) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}

	<-c.done
	c.flushes.Wait()

	return nil
}
