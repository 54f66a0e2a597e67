package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zayar/simplecashflow/internal/purchases"
)

// CreateBill creates a DRAFT purchase bill.
func (h *Handlers) CreateBill(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req purchases.CreateBillRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.CreateBill(ctx, tenantID, &req)
	})
}

// GetBill returns a bill with its lines.
func (h *Handlers) GetBill(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	bill, err := h.purchasesService.GetBill(r.Context(), tenantID, chi.URLParam(r, "billID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bill)
}

// PostBill posts a DRAFT bill.
func (h *Handlers) PostBill(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	billID := chi.URLParam(r, "billID")
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.PostBill(ctx, tenantID, billID)
	})
}

// VoidBill voids a posted bill.
func (h *Handlers) VoidBill(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	billID := chi.URLParam(r, "billID")
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.VoidBill(ctx, tenantID, billID)
	})
}

// RecordBillPayment records a payment against a bill.
func (h *Handlers) RecordBillPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	billID := chi.URLParam(r, "billID")
	var req purchases.RecordBillPaymentRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.RecordBillPayment(ctx, tenantID, billID, &req)
	})
}

// VoidBillPayment reverses a bill payment.
func (h *Handlers) VoidBillPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	billID := chi.URLParam(r, "billID")
	paymentID := chi.URLParam(r, "paymentID")
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.VoidBillPayment(ctx, tenantID, billID, paymentID)
	})
}

// IssueVendorCredit issues a vendor credit.
func (h *Handlers) IssueVendorCredit(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req purchases.CreateVendorCreditRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.IssueVendorCredit(ctx, tenantID, &req)
	})
}

// ApplyVendorCredit applies a vendor credit to a bill.
func (h *Handlers) ApplyVendorCredit(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	creditID := chi.URLParam(r, "creditID")
	var req purchases.ApplyRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.ApplyVendorCredit(ctx, tenantID, creditID, &req)
	})
}

// PayVendorAdvance records a vendor advance.
func (h *Handlers) PayVendorAdvance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req purchases.PayAdvanceRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.PayVendorAdvance(ctx, tenantID, &req)
	})
}

// ApplyVendorAdvance applies a vendor advance to a bill.
func (h *Handlers) ApplyVendorAdvance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	advanceID := chi.URLParam(r, "advanceID")
	var req purchases.ApplyRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.ApplyVendorAdvance(ctx, tenantID, advanceID, &req)
	})
}
