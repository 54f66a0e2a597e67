package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func parseQueryDate(r *http.Request, name string, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// GetProfitLoss serves the P&L over [from, to].
func (h *Handlers) GetProfitLoss(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	now := time.Now()
	from, okFrom := parseQueryDate(r, "from", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC))
	to, okTo := parseQueryDate(r, "to", now)
	if !okFrom || !okTo {
		respondError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD")
		return
	}
	report, err := h.reportsService.ProfitLoss(r.Context(), tenantID, from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetBalanceSheet serves the balance sheet as of a date.
func (h *Handlers) GetBalanceSheet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	asOf, okDate := parseQueryDate(r, "as_of", time.Now())
	if !okDate {
		respondError(w, http.StatusBadRequest, "Invalid as_of date, want YYYY-MM-DD")
		return
	}
	report, err := h.reportsService.BalanceSheet(r.Context(), tenantID, asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetReceivablesSummary serves the AR summary.
func (h *Handlers) GetReceivablesSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	report, err := h.reportsService.ReceivablesSummary(r.Context(), tenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetPayablesSummary serves the AP summary.
func (h *Handlers) GetPayablesSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	report, err := h.reportsService.PayablesSummary(r.Context(), tenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetReceivablesAging serves the AR aging.
func (h *Handlers) GetReceivablesAging(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	asOf, okDate := parseQueryDate(r, "as_of", time.Now())
	if !okDate {
		respondError(w, http.StatusBadRequest, "Invalid as_of date, want YYYY-MM-DD")
		return
	}
	report, err := h.reportsService.ReceivablesAging(r.Context(), tenantID, asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetPayablesAging serves the AP aging.
func (h *Handlers) GetPayablesAging(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	asOf, okDate := parseQueryDate(r, "as_of", time.Now())
	if !okDate {
		respondError(w, http.StatusBadRequest, "Invalid as_of date, want YYYY-MM-DD")
		return
	}
	report, err := h.reportsService.PayablesAging(r.Context(), tenantID, asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetAccountTransactions serves the drilldown for one account.
func (h *Handlers) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	now := time.Now()
	from, okFrom := parseQueryDate(r, "from", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC))
	to, okTo := parseQueryDate(r, "to", now)
	if !okFrom || !okTo {
		respondError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD")
		return
	}
	report, err := h.reportsService.AccountTransactions(r.Context(), tenantID, chi.URLParam(r, "accountID"), from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
