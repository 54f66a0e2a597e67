// Package outbox implements the transactional outbox: events written in
// the same transaction as their cause, later delivered at-least-once to
// a downstream bus by the publisher.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the core.
const (
	EventJournalEntryCreated = "journal.entry.created"
	EventInvoicePosted       = "invoice.posted"
	EventInvoiceVoided       = "invoice.voided"
	EventPaymentRecorded     = "payment.recorded"
	EventPaymentReversed     = "payment.reversed"
	EventCreditNotePosted    = "credit_note.posted"
	EventBillPosted          = "bill.posted"
	EventBillPaymentRecorded = "bill_payment.recorded"
)

// SchemaVersionV1 is the current envelope schema version.
const SchemaVersionV1 = "v1"

// Source identifies this producer on the envelope.
const Source = "simplecashflow-core"

// Event is one outbox row. It is inserted inside the same transaction
// as its cause.
type Event struct {
	ID            int64           `json:"id"`
	TenantID      int64           `json:"tenant_id"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion string          `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Source        string          `json:"source"`
	PartitionKey  string          `json:"partition_key"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   *string         `json:"causation_id,omitempty"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`

	PublishedAt          *time.Time `json:"published_at,omitempty"`
	PublishAttempts      int        `json:"publish_attempts"`
	LastPublishError     *string    `json:"last_publish_error,omitempty"`
	NextPublishAttemptAt *time.Time `json:"next_publish_attempt_at,omitempty"`
	LockID               *string    `json:"lock_id,omitempty"`
	LockedAt             *time.Time `json:"locked_at,omitempty"`
}

// Envelope is the canonical wire format handed to the bus.
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	SchemaVersion string          `json:"schemaVersion"`
	OccurredAt    time.Time       `json:"occurredAt"`
	TenantID      int64           `json:"tenantId"`
	PartitionKey  string          `json:"partitionKey"`
	CorrelationID string          `json:"correlationId"`
	CausationID   *string         `json:"causationId,omitempty"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
}

// Envelope builds the canonical envelope for an event row.
func (e *Event) Envelope() Envelope {
	return Envelope{
		EventID:       e.EventID,
		EventType:     e.EventType,
		SchemaVersion: e.SchemaVersion,
		OccurredAt:    e.OccurredAt,
		TenantID:      e.TenantID,
		PartitionKey:  e.PartitionKey,
		CorrelationID: e.CorrelationID,
		CausationID:   e.CausationID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Source:        e.Source,
		Payload:       e.Payload,
	}
}

// NewEvent fills the generated envelope fields of a fresh event. The
// partition key is the tenant id; a correlation id is minted when the
// caller has none.
func NewEvent(tenantID int64, eventType, aggregateType, aggregateID, correlationID string, causationID *string, payload interface{}) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return &Event{
		TenantID:      tenantID,
		EventID:       uuid.New().String(),
		EventType:     eventType,
		SchemaVersion: SchemaVersionV1,
		OccurredAt:    time.Now().UTC(),
		Source:        Source,
		PartitionKey:  partitionKey(tenantID),
		CorrelationID: correlationID,
		CausationID:   causationID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       body,
	}, nil
}
