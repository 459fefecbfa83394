package consumers

import (
	"context"
	"encoding/json"
	"time"

	segkafka "github.com/segmentio/kafka-go"

	"reaper/internal/adapters/kafka"
	"reaper/internal/domain/beacon"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

// BeaconConsumer ingests randomness beacon rounds from Kafka into storage.
// Rounds are append-only and idempotent: replaying the topic after an offset
// reset is harmless.
type BeaconConsumer struct {
	consumer *kafka.Consumer
	store    store.Store
	log      *logger.Logger
}

// beaconRoundMessage is the wire format published by the beacon relay
type beaconRoundMessage struct {
	Number     uint64    `json:"number"`
	Output     []byte    `json:"output"`
	ProducedAt time.Time `json:"produced_at"`
}

// NewBeaconConsumer creates a new beacon round consumer
func NewBeaconConsumer(consumer *kafka.Consumer, st store.Store, log *logger.Logger) *BeaconConsumer {
	return &BeaconConsumer{
		consumer: consumer,
		store:    st,
		log:      log.With("component", "beacon_consumer"),
	}
}

// Start consumes beacon rounds until the context is cancelled
func (c *BeaconConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handle)
}

func (c *BeaconConsumer) handle(ctx context.Context, msg segkafka.Message) error {
	var m beaconRoundMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return errors.Wrap(err, "malformed beacon round message")
	}
	if len(m.Output) == 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "round %d has empty output", m.Number)
	}

	err := c.store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		return r.Beacon.Insert(ctx, &beacon.Round{
			Number:     m.Number,
			Output:     m.Output,
			ProducedAt: m.ProducedAt,
		})
	})
	if err != nil {
		return errors.Wrapf(err, "failed to store beacon round %d", m.Number)
	}

	c.log.Debugw("Beacon round stored", "round", m.Number)
	return nil
}

// Close shuts the underlying reader down
func (c *BeaconConsumer) Close() error {
	return c.consumer.Close()
}
