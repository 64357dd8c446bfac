package web

import (
	"net/http"
	"strings"

	"github.com/itsyousal/TDHEMS-sub002/internal/app"
	"github.com/itsyousal/TDHEMS-sub002/internal/core"

	"github.com/go-chi/chi/v5"
)

// apiListBatches handles GET /api/batches?state=&location_id=.
func (h *Handler) apiListBatches(w http.ResponseWriter, r *http.Request) {
	filter := core.BatchFilter{State: core.LifecycleState(strings.ToUpper(r.URL.Query().Get("state")))}
	var ok bool
	if filter.LocationID, ok = queryInt(w, r, "location_id"); !ok {
		return
	}
	result, err := h.svc.ListBatches(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateBatch handles POST /api/batches.
func (h *Handler) apiCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req app.CreateBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateBatch(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiGetBatch handles GET /api/batches/{id}.
func (h *Handler) apiGetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetBatch(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiTransitionBatch handles POST /api/batches/{id}/transition with body {"action": "start|delay|complete"}.
func (h *Handler) apiTransitionBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.TransitionBatch(r.Context(), actorFromContext(r.Context()), id, req.Action)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRecordYield handles POST /api/batches/{id}/yield.
func (h *Handler) apiRecordYield(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	var req app.RecordYieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.RecordYield(r.Context(), actorFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiListIngredients(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListIngredients(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiAddIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	var req app.IngredientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ing, err := h.svc.AddIngredient(r.Context(), actorFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, ing)
}

// apiRecordUsage handles POST /api/batches/{id}/ingredients/{skuId}/usage.
func (h *Handler) apiRecordUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	skuID, ok := urlParamInt(w, r, "skuId")
	if !ok {
		return
	}
	var req app.RecordUsageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ing, err := h.svc.RecordUsage(r.Context(), actorFromContext(r.Context()), id, skuID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, ing)
}

func (h *Handler) apiListQCChecks(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListQCChecks(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiRecordQCCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	var req app.QCCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	check, err := h.svc.RecordQCCheck(r.Context(), actorFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, check)
}

func (h *Handler) apiListBatchLots(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListBatchLots(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetLot handles GET /api/lots/{lotNumber}.
func (h *Handler) apiGetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.svc.GetLot(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "lotNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, lot)
}

// apiTraceLot handles GET /api/lots/{lotNumber}/trace.
func (h *Handler) apiTraceLot(w http.ResponseWriter, r *http.Request) {
	trace, err := h.svc.TraceLot(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "lotNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, trace)
}
