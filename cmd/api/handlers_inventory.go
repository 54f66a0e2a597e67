package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zayar/simplecashflow/internal/integration"
	"github.com/zayar/simplecashflow/internal/inventory"
)

// AdjustStock performs a direct stock adjustment.
func (h *Handlers) AdjustStock(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req inventory.AdjustStockRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.inventoryService.Adjust(ctx, tenantID, &req)
	})
}

// GetStockBalance reads the (location, item) snapshot.
func (h *Handlers) GetStockBalance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	balance, err := h.inventoryService.GetStockBalance(r.Context(), tenantID,
		chi.URLParam(r, "locationID"), chi.URLParam(r, "itemID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

// ImportPitiSale imports an external POS sale.
func (h *Handlers) ImportPitiSale(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req integration.ImportSaleRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.integrationService.ImportSale(ctx, tenantID, &req)
	})
}

// ImportPitiRefund imports an external POS refund.
func (h *Handlers) ImportPitiRefund(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req integration.ImportRefundRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		return h.integrationService.ImportRefund(ctx, tenantID, &req)
	})
}
