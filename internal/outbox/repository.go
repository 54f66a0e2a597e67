package outbox

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayar/simplecashflow/internal/database"
)

func partitionKey(tenantID int64) string {
	return strconv.FormatInt(tenantID, 10)
}

// Appender appends events inside the caller's transaction. The posting
// engine and the domain services depend on this, not on the repository.
type Appender interface {
	Append(ctx context.Context, q database.Queryer, event *Event) error
}

// Repository provides access to outbox rows.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new outbox repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const eventColumns = `
	id, tenant_id, event_id, event_type, schema_version, occurred_at, source,
	partition_key, correlation_id, causation_id, aggregate_type, aggregate_id,
	payload, published_at, publish_attempts, last_publish_error,
	next_publish_attempt_at, lock_id, locked_at`

// Append inserts the event within the caller's transaction.
func (r *Repository) Append(ctx context.Context, q database.Queryer, e *Event) error {
	err := q.QueryRow(ctx, `
		INSERT INTO outbox_events (tenant_id, event_id, event_type, schema_version, occurred_at, source,
		                           partition_key, correlation_id, causation_id, aggregate_type, aggregate_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, e.TenantID, e.EventID, e.EventType, e.SchemaVersion, e.OccurredAt, e.Source,
		e.PartitionKey, e.CorrelationID, e.CausationID, e.AggregateType, e.AggregateID, e.Payload).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// ClaimBatch leases up to limit unpublished, due, unlocked rows for the
// given publisher instance. Stale leases older than leaseTimeout are
// reclaimed. Safe under concurrent publisher replicas.
func (r *Repository) ClaimBatch(ctx context.Context, lockID string, limit int, leaseTimeout time.Duration) ([]Event, error) {
	var events []Event
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id FROM outbox_events
			WHERE published_at IS NULL
			  AND (next_publish_attempt_at IS NULL OR next_publish_attempt_at <= now())
			  AND (locked_at IS NULL OR locked_at < now() - make_interval(secs => $2))
			ORDER BY occurred_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit, leaseTimeout.Seconds())
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE outbox_events SET lock_id = $1, locked_at = now() WHERE id = ANY($2)
		`, lockID, ids); err != nil {
			return fmt.Errorf("lease outbox rows: %w", err)
		}

		loaded, err := tx.Query(ctx, `SELECT `+eventColumns+` FROM outbox_events WHERE id = ANY($1) ORDER BY occurred_at ASC`, ids)
		if err != nil {
			return fmt.Errorf("load claimed events: %w", err)
		}
		defer loaded.Close()
		for loaded.Next() {
			var e Event
			if err := scanEvent(loaded, &e); err != nil {
				return err
			}
			events = append(events, e)
		}
		return loaded.Err()
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func scanEvent(row pgx.Row, e *Event) error {
	if err := row.Scan(
		&e.ID, &e.TenantID, &e.EventID, &e.EventType, &e.SchemaVersion, &e.OccurredAt, &e.Source,
		&e.PartitionKey, &e.CorrelationID, &e.CausationID, &e.AggregateType, &e.AggregateID,
		&e.Payload, &e.PublishedAt, &e.PublishAttempts, &e.LastPublishError,
		&e.NextPublishAttemptAt, &e.LockID, &e.LockedAt,
	); err != nil {
		return fmt.Errorf("scan outbox event: %w", err)
	}
	return nil
}

// MarkPublished records a successful publish and clears the lease.
func (r *Repository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now(), lock_id = NULL, locked_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

// MarkFailed records a failed publish attempt, schedules the retry and
// clears the lease.
func (r *Repository) MarkFailed(ctx context.Context, id int64, attempt int, nextAttemptAt time.Time, publishErr string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET publish_attempts = $2, next_publish_attempt_at = $3, last_publish_error = $4,
		    lock_id = NULL, locked_at = NULL
		WHERE id = $1
	`, id, attempt, nextAttemptAt, publishErr)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// DeadLetter terminally parks a malformed event. The row is marked
// published so the claim query skips it; the reason is preserved.
func (r *Repository) DeadLetter(ctx context.Context, id int64, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now(), last_publish_error = $2, lock_id = NULL, locked_at = NULL
		WHERE id = $1
	`, id, "dead-letter: "+reason)
	if err != nil {
		return fmt.Errorf("dead-letter: %w", err)
	}
	return nil
}

// CountUnpublished reports the backlog size, used by liveness checks.
func (r *Repository) CountUnpublished(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unpublished: %w", err)
	}
	return n, nil
}
