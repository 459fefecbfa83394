package kafka

// Topic definitions for Kafka event streaming
const (
	// Position lifecycle events
	TopicPositionEvents = "positions.lifecycle"

	// Scan lifecycle events
	TopicScanEvents = "scans.lifecycle"

	// System reset timer events
	TopicResetEvents = "reset.lifecycle"

	// Circuit breaker and recovery governance events
	TopicBreakerEvents = "breaker.lifecycle"

	// Inbound randomness beacon rounds (consumed, not produced)
	TopicBeaconRounds = "beacon.rounds"
)
