package web

import (
	"net/http"
	"strconv"

	"github.com/itsyousal/TDHEMS-sub002/internal/app"
	"github.com/itsyousal/TDHEMS-sub002/internal/core"
)

// idempotencyHeader carries a client key that makes a purchase receipt safe to retry.
const idempotencyHeader = "Idempotency-Key"

// apiStockLevels handles GET /api/inventory?location_id=&sku_id=&low_stock=.
func (h *Handler) apiStockLevels(w http.ResponseWriter, r *http.Request) {
	var filter core.StockFilter
	var ok bool
	if filter.LocationID, ok = queryInt(w, r, "location_id"); !ok {
		return
	}
	if filter.SKUID, ok = queryInt(w, r, "sku_id"); !ok {
		return
	}
	if s := r.URL.Query().Get("low_stock"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, r, "invalid low_stock query parameter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.LowStock = b
	}

	result, err := h.svc.GetStockLevels(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListMovements handles GET /api/inventory/{id}/movements.
func (h *Handler) apiListMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListMovements(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAdjustInventory handles POST /api/inventory/adjust.
func (h *Handler) apiAdjustInventory(w http.ResponseWriter, r *http.Request) {
	var req app.AdjustInventoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.AdjustInventory(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiReserveStock handles POST /api/inventory/reserve.
func (h *Handler) apiReserveStock(w http.ResponseWriter, r *http.Request) {
	var req app.ReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.svc.ReserveStock(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, rec)
}

// apiReleaseStock handles POST /api/inventory/release.
func (h *Handler) apiReleaseStock(w http.ResponseWriter, r *http.Request) {
	var req app.ReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.svc.ReleaseStock(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, rec)
}

// apiReceivePurchase handles POST /api/purchase-receipts. An optional Idempotency-Key
// header makes retries of the same delivery safe.
func (h *Handler) apiReceivePurchase(w http.ResponseWriter, r *http.Request) {
	var req app.PurchaseReceiptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.IdempotencyKey = r.Header.Get(idempotencyHeader)

	result, err := h.svc.ReceivePurchase(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}
