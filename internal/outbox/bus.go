package outbox

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Bus is the downstream notification boundary. Any faithful replacement
// satisfies the core: publish one envelope keyed by its partition key
// and report success or failure.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
}

// LogBus writes envelopes to the structured log. It stands in for the
// real bus in development and in tests.
type LogBus struct{}

// Publish logs the envelope and always succeeds.
func (LogBus) Publish(_ context.Context, env Envelope) error {
	log.Info().
		Str("event_id", env.EventID).
		Str("event_type", env.EventType).
		Int64("tenant_id", env.TenantID).
		Str("partition_key", env.PartitionKey).
		Str("aggregate_type", env.AggregateType).
		Str("aggregate_id", env.AggregateID).
		Msg("outbox event published")
	return nil
}
