package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// entryCreatedPayload is the journal.entry.created event payload.
type entryCreatedPayload struct {
	JournalEntryID string          `json:"journal_entry_id"`
	EntryDate      string          `json:"entry_date"`
	Description    string          `json:"description"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	LineCount      int             `json:"line_count"`
}

// PostJournalEntry validates and persists a balanced journal entry and
// appends its journal.entry.created outbox event, all within the
// caller's transaction. Every higher-level mutation composes one or
// more calls to this engine.
func (s *Service) PostJournalEntry(ctx context.Context, q database.Queryer, req *PostRequest) (*JournalEntry, error) {
	if req.TenantID == 0 {
		return nil, apierror.New(apierror.KindTenant, "tenant id required")
	}
	if req.Date.IsZero() {
		return nil, apierror.New(apierror.KindValidation, "entry date required")
	}

	totalDebit, _, err := ValidateLines(req.Lines)
	if err != nil {
		return nil, err
	}

	if err := s.AssertOpen(ctx, q, req.TenantID, req.Date); err != nil {
		return nil, err
	}

	if !req.SkipAccountValidation {
		ids := make([]string, 0, len(req.Lines))
		seen := make(map[string]bool, len(req.Lines))
		for _, l := range req.Lines {
			if !seen[l.AccountID] {
				seen[l.AccountID] = true
				ids = append(ids, l.AccountID)
			}
		}
		owned, err := s.repo.CountAccountsOwned(ctx, q, req.TenantID, ids)
		if err != nil {
			return nil, err
		}
		if owned != len(ids) {
			return nil, apierror.New(apierror.KindTenant, "one or more accounts do not belong to the tenant or are inactive")
		}
	}

	entry := &JournalEntry{
		TenantID:        req.TenantID,
		EntryDate:       money.DateOnly(req.Date),
		Description:     req.Description,
		LocationID:      req.LocationID,
		CreatedByUserID: req.CreatedByUserID,
		CreatedAt:       time.Now(),
	}
	for _, l := range req.Lines {
		entry.Lines = append(entry.Lines, JournalLine{
			AccountID: l.AccountID,
			Debit:     money.RoundMoney(l.Debit),
			Credit:    money.RoundMoney(l.Credit),
		})
	}

	if err := s.repo.InsertJournalEntry(ctx, q, entry); err != nil {
		return nil, err
	}

	event, err := outbox.NewEvent(req.TenantID, outbox.EventJournalEntryCreated, "JournalEntry", entry.ID,
		req.CorrelationID, req.CausationID, entryCreatedPayload{
			JournalEntryID: entry.ID,
			EntryDate:      entry.EntryDate.Format("2006-01-02"),
			Description:    entry.Description,
			TotalDebit:     totalDebit,
			LineCount:      len(entry.Lines),
		})
	if err != nil {
		return nil, apierror.Wrap(apierror.KindIntegrity, err, "build outbox event")
	}
	if err := s.events.Append(ctx, q, event); err != nil {
		return nil, err
	}

	return entry, nil
}

// ReversalOf builds the posting request that reverses an existing entry:
// same accounts, swapped debit and credit sides.
func ReversalOf(entry *JournalEntry, date time.Time, description string, correlationID string) *PostRequest {
	req := &PostRequest{
		TenantID:      entry.TenantID,
		Date:          date,
		Description:   description,
		LocationID:    entry.LocationID,
		CorrelationID: correlationID,
		CausationID:   &entry.ID,
		// The original entry already passed account validation.
		SkipAccountValidation: true,
	}
	for _, l := range entry.Lines {
		req.Lines = append(req.Lines, LineInput{
			AccountID: l.AccountID,
			Debit:     l.Credit,
			Credit:    l.Debit,
		})
	}
	return req
}
