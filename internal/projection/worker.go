package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// WorkerConfig holds projection worker tuning knobs.
type WorkerConfig struct {
	BatchSize int           `yaml:"batch_size"`
	Interval  time.Duration `yaml:"interval"`
}

// DefaultWorkerConfig returns the default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{BatchSize: 200, Interval: 2 * time.Second}
}

// Worker consumes journal.entry.created events into the projection
// tables. Duplicate deliveries are absorbed by the ProcessedEvent gate.
type Worker struct {
	db     *pgxpool.Pool
	repo   *Repository
	ledger *ledger.Service
	config WorkerConfig
}

// NewWorker creates a projection worker.
func NewWorker(db *pgxpool.Pool, ledgerService *ledger.Service, config WorkerConfig) *Worker {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultWorkerConfig().BatchSize
	}
	if config.Interval <= 0 {
		config.Interval = DefaultWorkerConfig().Interval
	}
	return &Worker{db: db, repo: NewRepository(db), ledger: ledgerService, config: config}
}

// Run loops until ctx is cancelled, finishing the in-flight batch.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Int("batch_size", w.config.BatchSize).Dur("interval", w.config.Interval).Msg("projection worker started")

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("projection worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("projection worker tick failed")
			}
		}
	}
}

// Tick applies one batch of unprocessed journal.entry.created events and
// returns the number applied.
func (w *Worker) Tick(ctx context.Context) (int, error) {
	events, err := w.fetchUnprocessed(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, e := range events {
		if err := w.Apply(ctx, e.tenantID, e.eventID, e.aggregateID); err != nil {
			log.Error().Err(err).
				Int64("tenant_id", e.tenantID).
				Str("event_id", e.eventID).
				Str("entry_id", e.aggregateID).
				Msg("projection apply failed")
			continue
		}
		applied++
	}
	if applied > 0 {
		log.Debug().Int("applied", applied).Msg("projection worker tick")
	}
	return applied, nil
}

type pendingEvent struct {
	tenantID    int64
	eventID     string
	aggregateID string
}

func (w *Worker) fetchUnprocessed(ctx context.Context) ([]pendingEvent, error) {
	rows, err := w.db.Query(ctx, `
		SELECT e.tenant_id, e.event_id, e.aggregate_id
		FROM outbox_events e
		WHERE e.event_type = $1
		  AND NOT EXISTS (
			SELECT 1 FROM processed_events p
			WHERE p.tenant_id = e.tenant_id AND p.event_id = e.event_id
		  )
		ORDER BY e.occurred_at ASC
		LIMIT $2
	`, outbox.EventJournalEntryCreated, w.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []pendingEvent
	for rows.Next() {
		var e pendingEvent
		if err := rows.Scan(&e.tenantID, &e.eventID, &e.aggregateID); err != nil {
			return nil, fmt.Errorf("scan pending event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Apply folds one journal entry into the projections, gated by the
// ProcessedEvent insert. Everything commits atomically; the ack is the
// commit itself.
func (w *Worker) Apply(ctx context.Context, tenantID int64, eventID, entryID string) error {
	return database.WithTx(ctx, w.db, func(tx pgx.Tx) error {
		fresh, err := w.repo.MarkProcessed(ctx, tx, tenantID, eventID)
		if err != nil {
			return err
		}
		if !fresh {
			// Already applied by an earlier delivery.
			return nil
		}

		entry, err := w.ledger.Repo().GetJournalEntryByID(ctx, tx, tenantID, entryID)
		if err != nil {
			return err
		}
		return w.fold(ctx, tx, entry)
	})
}

// fold applies a journal entry's lines to AccountBalance and
// DailySummary.
func (w *Worker) fold(ctx context.Context, tx pgx.Tx, entry *ledger.JournalEntry) error {
	day := money.DateOnly(entry.EntryDate)

	accountTypes, err := w.accountTypes(ctx, tx, entry)
	if err != nil {
		return err
	}

	income := decimal.Zero
	expense := decimal.Zero
	for _, line := range entry.Lines {
		if err := w.repo.AddToAccountBalance(ctx, tx, &AccountBalance{
			TenantID:    entry.TenantID,
			Day:         day,
			AccountID:   line.AccountID,
			DebitTotal:  line.Debit,
			CreditTotal: line.Credit,
		}); err != nil {
			return err
		}
		switch accountTypes[line.AccountID] {
		case ledger.AccountTypeIncome:
			income = income.Add(line.Credit.Sub(line.Debit))
		case ledger.AccountTypeExpense:
			expense = expense.Add(line.Debit.Sub(line.Credit))
		}
	}

	if !income.IsZero() || !expense.IsZero() {
		if err := w.repo.AddToDailySummary(ctx, tx, &DailySummary{
			TenantID:     entry.TenantID,
			Day:          day,
			TotalIncome:  income,
			TotalExpense: expense,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) accountTypes(ctx context.Context, q database.Queryer, entry *ledger.JournalEntry) (map[string]ledger.AccountType, error) {
	ids := make([]string, 0, len(entry.Lines))
	seen := make(map[string]bool, len(entry.Lines))
	for _, l := range entry.Lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			ids = append(ids, l.AccountID)
		}
	}

	rows, err := q.Query(ctx, `
		SELECT id, type FROM accounts WHERE tenant_id = $1 AND id = ANY($2)
	`, entry.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("load account types: %w", err)
	}
	defer rows.Close()

	types := make(map[string]ledger.AccountType, len(ids))
	for rows.Next() {
		var id string
		var t ledger.AccountType
		if err := rows.Scan(&id, &t); err != nil {
			return nil, fmt.Errorf("scan account type: %w", err)
		}
		types[id] = t
	}
	return types, rows.Err()
}
