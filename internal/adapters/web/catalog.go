package web

import (
	"net/http"

	"github.com/itsyousal/TDHEMS-sub002/internal/app"
)

// apiListLocations handles GET /api/locations.
func (h *Handler) apiListLocations(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListLocations(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateLocation handles POST /api/locations.
func (h *Handler) apiCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req app.CreateLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	loc, err := h.svc.CreateLocation(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, loc)
}

// apiListSKUs handles GET /api/skus?category=RAW|FINISHED.
func (h *Handler) apiListSKUs(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListSKUs(r.Context(), actorFromContext(r.Context()), r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateSKU handles POST /api/skus.
func (h *Handler) apiCreateSKU(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSKURequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateSKU(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiGetSKU handles GET /api/skus/{id}.
func (h *Handler) apiGetSKU(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetSKU(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListSKULots handles GET /api/skus/{id}/lots.
func (h *Handler) apiListSKULots(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListSKULots(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}
