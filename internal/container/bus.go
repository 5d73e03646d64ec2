package container

import (
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink-go/internal/analytics"
	"github.com/serroba/shortlink-go/internal/config"
	"github.com/serroba/shortlink-go/internal/messaging"
	"github.com/serroba/shortlink-go/internal/metrics"
	"github.com/serroba/shortlink-go/internal/store"
	"go.uber.org/zap"
)

// PublisherPackage registers the event-bus publisher for the configured
// transport, wrapped with the bounded-retry policy, plus the typed hit
// publisher keyed by code.
func PublisherPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (message.Publisher, error) {
		options := do.MustInvoke[*config.Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		var (
			publisher message.Publisher
			err       error
		)

		if options.EventBus == "kafka" {
			publisher = messaging.NewKafkaPublisher(strings.Split(options.KafkaBrokers, ","), logger)
		} else {
			publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{
				Client: do.MustInvoke[redis.UniversalClient](i),
			}, watermill.NewStdLogger(false, false))
			if err != nil {
				return nil, err
			}
		}

		return messaging.NewRetryPublisher(publisher, logger, m.HitDropped), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[analytics.HitEvent], error) {
		options := do.MustInvoke[*config.Options](i)
		publisher := do.MustInvoke[message.Publisher](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		publish := messaging.NewPublishFunc(publisher, options.HitsTopic, func(event *analytics.HitEvent) string {
			return event.Code
		})

		return func(event *analytics.HitEvent) error {
			if err := publish(event); err != nil {
				return err
			}

			m.HitPublished()

			return nil
		}, nil
	})
}

// SubscriberPackage registers the consumer-group subscriber for the
// configured transport.
func SubscriberPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (message.Subscriber, error) {
		options := do.MustInvoke[*config.Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if options.EventBus == "kafka" {
			return messaging.NewKafkaSubscriber(
				strings.Split(options.KafkaBrokers, ","),
				options.ConsumerGroup,
				logger,
			), nil
		}

		return redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        do.MustInvoke[redis.UniversalClient](i),
			ConsumerGroup: options.ConsumerGroup,
			Consumer:      watermill.NewShortUUID(),
		}, watermill.NewStdLogger(false, false))
	})
}

// AnalyticsPackage registers the analytics store and query service.
func AnalyticsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (analytics.Store, error) {
		return store.NewRedisAnalyticsStore(do.MustInvoke[redis.UniversalClient](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*analytics.Query, error) {
		return analytics.NewQuery(
			do.MustInvoke[analytics.Store](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// ConsumerGroupPackage registers the analytics consumer behind the group
// lifecycle used by the consumer binary.
func ConsumerGroupPackage(injector *do.Injector) {
	SubscriberPackage(injector)
	AnalyticsPackage(injector)

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		options := do.MustInvoke[*config.Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		subscriber := do.MustInvoke[message.Subscriber](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		consumer := analytics.NewConsumer(
			subscriber,
			do.MustInvoke[analytics.Store](i),
			analytics.NewLogDeadLetter(logger),
			m,
			logger,
			analytics.ConsumerConfig{
				Topic:       options.HitsTopic,
				BatchSize:   options.ConsumerBatchSize,
				MaxInFlight: options.ConsumerMaxInFlight,
			},
		)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(consumer)

		return group, nil
	})
}

// MetricsPackage registers the process-wide metrics registry.
func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})
}
