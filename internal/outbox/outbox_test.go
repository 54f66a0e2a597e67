package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	causation := "cause-1"
	e, err := NewEvent(42, EventJournalEntryCreated, "JournalEntry", "je-1", "corr-1", &causation,
		map[string]string{"journal_entry_id": "je-1"})
	require.NoError(t, err)

	assert.Equal(t, int64(42), e.TenantID)
	assert.Equal(t, "42", e.PartitionKey)
	assert.Equal(t, EventJournalEntryCreated, e.EventType)
	assert.Equal(t, SchemaVersionV1, e.SchemaVersion)
	assert.Equal(t, Source, e.Source)
	assert.Equal(t, "corr-1", e.CorrelationID)
	require.NotNil(t, e.CausationID)
	assert.Equal(t, "cause-1", *e.CausationID)
	assert.NotEmpty(t, e.EventID)
	assert.WithinDuration(t, time.Now(), e.OccurredAt, time.Minute)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(e.Payload, &payload))
	assert.Equal(t, "je-1", payload["journal_entry_id"])
}

func TestNewEventMintsCorrelationID(t *testing.T) {
	e, err := NewEvent(1, EventInvoicePosted, "Invoice", "inv-1", "", nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, e.CorrelationID)
}

func TestEnvelope(t *testing.T) {
	e, err := NewEvent(9, EventPaymentRecorded, "Payment", "p-1", "corr", nil, map[string]int{"n": 1})
	require.NoError(t, err)

	env := e.Envelope()
	assert.Equal(t, e.EventID, env.EventID)
	assert.Equal(t, e.EventType, env.EventType)
	assert.Equal(t, int64(9), env.TenantID)
	assert.Equal(t, "9", env.PartitionKey)
	assert.Equal(t, e.AggregateID, env.AggregateID)
	assert.Equal(t, e.Source, env.Source)
}

func TestBackoff(t *testing.T) {
	max := 60 * time.Second
	assert.Equal(t, 2*time.Second, Backoff(1, max))
	assert.Equal(t, 4*time.Second, Backoff(2, max))
	assert.Equal(t, 32*time.Second, Backoff(5, max))
	// Capped at the configured maximum.
	assert.Equal(t, max, Backoff(6, max))
	assert.Equal(t, max, Backoff(20, max))
	// Attempt counts below one behave like the first retry.
	assert.Equal(t, 2*time.Second, Backoff(0, max))
}
