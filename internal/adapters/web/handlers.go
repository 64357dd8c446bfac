package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/itsyousal/TDHEMS-sub002/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	log       *zap.Logger
	jwtSecret string
}

// Options configures NewHandler.
type Options struct {
	AllowedOrigins string
	JWTSecret      string
	MaxBodyBytes   int64
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, log *zap.Logger, opts Options) http.Handler {
	h := &Handler{svc: svc, log: log, jwtSecret: opts.JWTSecret}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(opts.MaxBodyBytes))

		// ── Catalog ───────────────────────────────────────────────────────────
		r.Get("/api/locations", h.apiListLocations)
		r.Post("/api/locations", h.apiCreateLocation)
		r.Get("/api/skus", h.apiListSKUs)
		r.Post("/api/skus", h.apiCreateSKU)
		r.Get("/api/skus/{id}", h.apiGetSKU)
		r.Get("/api/skus/{id}/lots", h.apiListSKULots)

		// ── Inventory ledger ──────────────────────────────────────────────────
		r.Get("/api/inventory", h.apiStockLevels)
		r.Get("/api/inventory/{id}/movements", h.apiListMovements)
		r.Post("/api/inventory/adjust", h.apiAdjustInventory)
		r.Post("/api/inventory/reserve", h.apiReserveStock)
		r.Post("/api/inventory/release", h.apiReleaseStock)
		r.Post("/api/purchase-receipts", h.apiReceivePurchase)

		// ── Production batches ────────────────────────────────────────────────
		r.Get("/api/batches", h.apiListBatches)
		r.Post("/api/batches", h.apiCreateBatch)
		r.Get("/api/batches/{id}", h.apiGetBatch)
		r.Post("/api/batches/{id}/transition", h.apiTransitionBatch)
		r.Post("/api/batches/{id}/yield", h.apiRecordYield)
		r.Get("/api/batches/{id}/ingredients", h.apiListIngredients)
		r.Post("/api/batches/{id}/ingredients", h.apiAddIngredient)
		r.Post("/api/batches/{id}/ingredients/{skuId}/usage", h.apiRecordUsage)
		r.Get("/api/batches/{id}/qc-checks", h.apiListQCChecks)
		r.Post("/api/batches/{id}/qc-checks", h.apiRecordQCCheck)
		r.Get("/api/batches/{id}/lots", h.apiListBatchLots)

		// ── Traceability ──────────────────────────────────────────────────────
		r.Get("/api/lots/{lotNumber}", h.apiGetLot)
		r.Get("/api/lots/{lotNumber}/trace", h.apiTraceLot)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// urlParamInt parses a positive integer URL parameter, writing a 400 on failure.
func urlParamInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		writeError(w, r, "invalid "+name+": must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		writeError(w, r, "invalid "+name+" query parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
