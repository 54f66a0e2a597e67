package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PublisherConfig holds publisher tuning knobs.
type PublisherConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	Interval     time.Duration `yaml:"interval"`
	LeaseTimeout time.Duration `yaml:"lease_timeout"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
}

// DefaultPublisherConfig returns the default publisher configuration.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		BatchSize:    100,
		Interval:     2 * time.Second,
		LeaseTimeout: 60 * time.Second,
		MaxBackoff:   60 * time.Second,
	}
}

// Publisher drains the outbox to the bus. Delivery is at-least-once;
// consumers dedupe on event id. Multiple replicas may run concurrently.
type Publisher struct {
	repo   *Repository
	bus    Bus
	config PublisherConfig
	lockID string
}

// NewPublisher creates a publisher with its own lease identity.
func NewPublisher(repo *Repository, bus Bus, config PublisherConfig) *Publisher {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultPublisherConfig().BatchSize
	}
	if config.Interval <= 0 {
		config.Interval = DefaultPublisherConfig().Interval
	}
	if config.LeaseTimeout <= 0 {
		config.LeaseTimeout = DefaultPublisherConfig().LeaseTimeout
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultPublisherConfig().MaxBackoff
	}
	return &Publisher{
		repo:   repo,
		bus:    bus,
		config: config,
		lockID: uuid.New().String(),
	}
}

// Run loops until ctx is cancelled, finishing the in-flight batch before
// exiting.
func (p *Publisher) Run(ctx context.Context) {
	log.Info().
		Str("lock_id", p.lockID).
		Int("batch_size", p.config.BatchSize).
		Dur("interval", p.config.Interval).
		Msg("outbox publisher started")

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox publisher stopped")
			return
		case <-ticker.C:
			if _, err := p.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("outbox publisher tick failed")
			}
		}
	}
}

// Tick claims and publishes one batch. It returns the number of events
// successfully published. A scheduler ping may call this directly in
// cold-start environments.
func (p *Publisher) Tick(ctx context.Context) (int, error) {
	events, err := p.repo.ClaimBatch(ctx, p.lockID, p.config.BatchSize, p.config.LeaseTimeout)
	if err != nil {
		return 0, err
	}

	published := 0
	for i := range events {
		e := &events[i]

		// Envelopes without a tenant cannot be partitioned; dead-letter.
		if e.TenantID <= 0 {
			if err := p.repo.DeadLetter(ctx, e.ID, "missing tenant id"); err != nil {
				log.Error().Err(err).Int64("outbox_id", e.ID).Msg("dead-letter failed")
				continue
			}
			log.Warn().
				Int64("outbox_id", e.ID).
				Str("event_id", e.EventID).
				Str("event_type", e.EventType).
				Msg("outbox event dead-lettered: missing tenant id")
			continue
		}

		if err := p.bus.Publish(ctx, e.Envelope()); err != nil {
			attempt := e.PublishAttempts + 1
			next := time.Now().UTC().Add(Backoff(attempt, p.config.MaxBackoff))
			if markErr := p.repo.MarkFailed(ctx, e.ID, attempt, next, err.Error()); markErr != nil {
				log.Error().Err(markErr).Int64("outbox_id", e.ID).Msg("mark failed failed")
			}
			log.Warn().
				Err(err).
				Int64("outbox_id", e.ID).
				Str("event_id", e.EventID).
				Int("attempt", attempt).
				Time("next_attempt_at", next).
				Msg("outbox publish failed, will retry")
			continue
		}

		if err := p.repo.MarkPublished(ctx, e.ID); err != nil {
			// The publish went out; the lease expires and the row is
			// retried, so the consumer may see a duplicate.
			log.Error().Err(err).Int64("outbox_id", e.ID).Msg("mark published failed")
			continue
		}
		published++
	}

	if len(events) > 0 {
		log.Debug().
			Int("claimed", len(events)).
			Int("published", published).
			Msg("outbox publisher tick")
	}
	return published, nil
}

// Backoff returns the retry delay after the given attempt count:
// min(maxBackoff, 2^attempts seconds).
func Backoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 30 {
		attempts = 30
	}
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
