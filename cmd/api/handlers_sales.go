package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zayar/simplecashflow/internal/sales"
)

// CreateInvoice creates a DRAFT invoice.
func (h *Handlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req sales.CreateInvoiceRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.salesService.CreateInvoice(ctx, tenantID, &req)
	})
}

// GetInvoice returns an invoice with its lines.
func (h *Handlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	invoice, err := h.salesService.GetInvoice(r.Context(), tenantID, chi.URLParam(r, "invoiceID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

// PostInvoice posts a DRAFT invoice.
func (h *Handlers) PostInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	invoiceID := chi.URLParam(r, "invoiceID")
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.salesService.PostInvoice(ctx, tenantID, invoiceID)
	})
}

// VoidInvoice voids a posted invoice.
func (h *Handlers) VoidInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	invoiceID := chi.URLParam(r, "invoiceID")
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.salesService.VoidInvoice(ctx, tenantID, invoiceID)
	})
}

// RecordPayment records a payment against an invoice.
func (h *Handlers) RecordPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	invoiceID := chi.URLParam(r, "invoiceID")
	var req sales.RecordPaymentRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.salesService.RecordPayment(ctx, tenantID, invoiceID, &req)
	})
}

// VoidPayment reverses a payment.
func (h *Handlers) VoidPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	invoiceID := chi.URLParam(r, "invoiceID")
	paymentID := chi.URLParam(r, "paymentID")
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.salesService.VoidPayment(ctx, tenantID, invoiceID, paymentID)
	})
}

// CreateInvoicePublicLink mints a signed token for anonymous invoice view.
func (h *Handlers) CreateInvoicePublicLink(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	invoiceID := chi.URLParam(r, "invoiceID")

	// Only existing, owned invoices get links.
	if _, err := h.salesService.GetInvoice(r.Context(), tenantID, invoiceID); err != nil {
		respondServiceError(w, err)
		return
	}
	token, err := h.tokenService.MintInvoiceLink(tenantID, invoiceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"token": token,
		"url":   "/public/invoices/" + token,
	})
}

// GetPublicInvoice serves the anonymous invoice view.
func (h *Handlers) GetPublicInvoice(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokenService.ValidateInvoiceLink(chi.URLParam(r, "token"))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired link")
		return
	}
	invoice, err := h.salesService.GetInvoice(r.Context(), claims.TenantID, claims.InvoiceID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

// IssueCreditNote issues and posts a credit note.
func (h *Handlers) IssueCreditNote(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req sales.CreateCreditNoteRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.salesService.IssueCreditNote(ctx, tenantID, &req)
	})
}

// ApplyCreditNote applies a credit note to an invoice.
func (h *Handlers) ApplyCreditNote(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	creditNoteID := chi.URLParam(r, "creditNoteID")
	var req sales.ApplyRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.salesService.ApplyCreditNote(ctx, tenantID, creditNoteID, &req)
	})
}

// ReceiveCustomerAdvance records a customer advance.
func (h *Handlers) ReceiveCustomerAdvance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req sales.ReceiveAdvanceRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.salesService.ReceiveAdvance(ctx, tenantID, &req)
	})
}

// ApplyCustomerAdvance applies an advance to an invoice.
func (h *Handlers) ApplyCustomerAdvance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	advanceID := chi.URLParam(r, "advanceID")
	var req sales.ApplyRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.salesService.ApplyAdvance(ctx, tenantID, advanceID, &req)
	})
}
