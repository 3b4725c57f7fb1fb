// Package events carries booking domain events between the booking flow and
// its side effects over watermill, in-process or through Redis or Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
)

// Publisher publishes domain events
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// HandlerFunc handles one event payload; returning an error nacks the message
type HandlerFunc func(ctx context.Context, payload []byte) error

// Bus is a watermill publisher/subscriber pair
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *logrus.Logger
	closers    []func() error
}

// NewBus wraps an existing publisher and subscriber
func NewBus(publisher message.Publisher, subscriber message.Subscriber, logger *logrus.Logger) *Bus {
	return &Bus{publisher: publisher, subscriber: subscriber, logger: logger}
}

// NewInMemoryBus returns a bus backed by watermill's go channels
func NewInMemoryBus(logger *logrus.Logger) *Bus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewLoggerAdapter(logger))
	bus := NewBus(pubSub, pubSub, logger)
	bus.closers = append(bus.closers, pubSub.Close)
	return bus
}

// Open builds the bus selected by cfg.Driver
func Open(cfg config.EventsConfig, logger *logrus.Logger) (*Bus, error) {
	wmLogger := NewLoggerAdapter(logger)

	switch cfg.Driver {
	case "", "gochannel":
		return NewInMemoryBus(logger), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, wmLogger)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create redis publisher: %w", err)
		}
		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: cfg.ConsumerGroup,
			Consumer:      cfg.ConsumerGroup + "-" + watermill.NewShortUUID(),
		}, wmLogger)
		if err != nil {
			publisher.Close()
			client.Close()
			return nil, fmt.Errorf("failed to create redis subscriber: %w", err)
		}
		bus := NewBus(publisher, subscriber, logger)
		bus.closers = append(bus.closers, publisher.Close, subscriber.Close, client.Close)
		return bus, nil

	case "kafka":
		marshaler := kafka.DefaultMarshaler{}
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: marshaler,
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}

		saramaConfig := kafka.DefaultSaramaSubscriberConfig()
		saramaConfig.Version = sarama.V1_0_0_0
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
		saramaConfig.ClientID = cfg.ConsumerGroup

		subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               cfg.KafkaBrokers,
			Unmarshaler:           marshaler,
			ConsumerGroup:         cfg.ConsumerGroup,
			OverwriteSaramaConfig: saramaConfig,
		}, wmLogger)
		if err != nil {
			publisher.Close()
			return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
		}
		bus := NewBus(publisher, subscriber, logger)
		bus.closers = append(bus.closers, publisher.Close, subscriber.Close)
		return bus, nil
	}

	return nil, fmt.Errorf("unknown events driver: %s", cfg.Driver)
}

// Publish JSON-encodes payload and publishes it on topic
func (b *Bus) Publish(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", topic, err)
	}

	b.logger.WithFields(logrus.Fields{
		"topic":      topic,
		"message_id": msg.UUID,
	}).Debug("Event published")
	return nil
}

// Subscribe consumes topic until ctx is done, acking handled messages and
// nacking failed ones
func (b *Bus) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	messages, err := b.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			if err := handler(msg.Context(), msg.Payload); err != nil {
				b.logger.WithError(err).WithFields(logrus.Fields{
					"topic":      topic,
					"message_id": msg.UUID,
				}).Error("Event handler failed")
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()

	return nil
}

// Close shuts down the transport
func (b *Bus) Close() error {
	var firstErr error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
