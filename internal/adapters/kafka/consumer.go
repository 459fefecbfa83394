package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"reaper/pkg/logger"
)

// Consumer handles Kafka message consumption
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 10e3 // 10KB
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6 // 10MB
	}

	log := logger.Get().With("component", "kafka_consumer", "topic", cfg.Topic)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: kafka.FirstOffset, // Start from beginning if no offset committed
	})

	return &Consumer{
		reader: reader,
		log:    log,
	}
}

// MessageHandler is a function that processes a message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consume starts consuming messages and calling the handler.
// Handler failures are logged and skipped so one bad message never stalls
// the partition.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Info("Starting consumer...")

	for {
		if ctx.Err() != nil {
			c.log.Info("Consumer stopped")
			return ctx.Err()
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumer stopped")
				return ctx.Err()
			}
			c.log.Errorf("Failed to read message: %v", err)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.log.Errorf("Failed to handle message: %v", err)
		}
	}
}

// Close closes the reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
