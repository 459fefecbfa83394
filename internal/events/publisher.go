package events

import (
	"context"
	"time"

	"reaper/internal/adapters/kafka"
	"reaper/pkg/logger"
)

// Producer is the transport the publisher writes through
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Publisher emits domain events to Kafka. Emission is best-effort: a publish
// failure is logged, never propagated, because the ledger state is already
// committed and the indexer can replay from storage.
type Publisher struct {
	producer Producer
	engineID string
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer Producer, engineID string, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		engineID: engineID,
		log:      log,
	}
}

func (p *Publisher) envelope(typ string) Envelope {
	return Envelope{
		Type:       typ,
		EngineID:   p.engineID,
		OccurredAt: time.Now().UTC(),
	}
}

func (p *Publisher) emit(ctx context.Context, topic, key string, event interface{}) {
	if p == nil || p.producer == nil {
		return
	}
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Errorf("Failed to publish event to %s: %v", topic, err)
	}
}

// PositionEntered emits a position entry event
func (p *Publisher) PositionEntered(ctx context.Context, e PositionEntered) {
	e.Envelope = p.envelope("position.entered")
	p.emit(ctx, kafka.TopicPositionEvents, e.Owner.String(), e)
}

// StakeAdded emits a stake increase event
func (p *Publisher) StakeAdded(ctx context.Context, e StakeAdded) {
	e.Envelope = p.envelope("position.stake_added")
	p.emit(ctx, kafka.TopicPositionEvents, e.Owner.String(), e)
}

// PositionExtracted emits a voluntary exit event
func (p *Publisher) PositionExtracted(ctx context.Context, e PositionExtracted) {
	e.Envelope = p.envelope("position.extracted")
	p.emit(ctx, kafka.TopicPositionEvents, e.Owner.String(), e)
}

// RewardsClaimed emits a rewards claim event
func (p *Publisher) RewardsClaimed(ctx context.Context, e RewardsClaimed) {
	e.Envelope = p.envelope("position.rewards_claimed")
	p.emit(ctx, kafka.TopicPositionEvents, e.Owner.String(), e)
}

// PositionCulled emits a capacity eviction event
func (p *Publisher) PositionCulled(ctx context.Context, e PositionCulled) {
	e.Envelope = p.envelope("position.culled")
	p.emit(ctx, kafka.TopicPositionEvents, e.Owner.String(), e)
}

// ScanCommitted emits a scan commitment event
func (p *Publisher) ScanCommitted(ctx context.Context, e ScanCommitted) {
	e.Envelope = p.envelope("scan.committed")
	p.emit(ctx, kafka.TopicScanEvents, e.ScanID.String(), e)
}

// ScanActivated emits a seed activation event
func (p *Publisher) ScanActivated(ctx context.Context, e ScanActivated) {
	e.Envelope = p.envelope("scan.activated")
	p.emit(ctx, kafka.TopicScanEvents, e.ScanID.String(), e)
}

// DeathsSubmitted emits a batch confirmation event
func (p *Publisher) DeathsSubmitted(ctx context.Context, e DeathsSubmitted) {
	e.Envelope = p.envelope("scan.deaths_submitted")
	p.emit(ctx, kafka.TopicScanEvents, e.ScanID.String(), e)
}

// ScanFinalized emits a scan settlement event
func (p *Publisher) ScanFinalized(ctx context.Context, e ScanFinalized) {
	e.Envelope = p.envelope("scan.finalized")
	p.emit(ctx, kafka.TopicScanEvents, e.ScanID.String(), e)
}

// SystemReset emits a global reset event
func (p *Publisher) SystemReset(ctx context.Context, e SystemReset) {
	e.Envelope = p.envelope("reset.triggered")
	p.emit(ctx, kafka.TopicResetEvents, "reset", e)
}

// BreakerTripped emits a circuit breaker trip event
func (p *Publisher) BreakerTripped(ctx context.Context, e BreakerTripped) {
	e.Envelope = p.envelope("breaker.tripped")
	p.emit(ctx, kafka.TopicBreakerEvents, "breaker", e)
}

// BreakerResetProposed emits a recovery proposal event
func (p *Publisher) BreakerResetProposed(ctx context.Context, e BreakerResetProposed) {
	e.Envelope = p.envelope("breaker.reset_proposed")
	p.emit(ctx, kafka.TopicBreakerEvents, e.ProposalID.String(), e)
}

// BreakerResetVetoed emits a veto event
func (p *Publisher) BreakerResetVetoed(ctx context.Context, e BreakerResetVetoed) {
	e.Envelope = p.envelope("breaker.reset_vetoed")
	p.emit(ctx, kafka.TopicBreakerEvents, e.ProposalID.String(), e)
}

// BreakerResetExecuted emits a recovery execution event
func (p *Publisher) BreakerResetExecuted(ctx context.Context, e BreakerResetExecuted) {
	e.Envelope = p.envelope("breaker.reset_executed")
	p.emit(ctx, kafka.TopicBreakerEvents, e.ProposalID.String(), e)
}

// PayoutCountersReset emits a counter-only reset event
func (p *Publisher) PayoutCountersReset(ctx context.Context, e PayoutCountersReset) {
	e.Envelope = p.envelope("breaker.counters_reset")
	p.emit(ctx, kafka.TopicBreakerEvents, "breaker", e)
}
