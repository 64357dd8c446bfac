package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/itsyousal/TDHEMS-sub002/internal/app"
	"github.com/itsyousal/TDHEMS-sub002/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// fakeService implements the handful of ApplicationService methods these tests hit.
// Calling anything else panics on the nil embedded interface.
type fakeService struct {
	app.ApplicationService

	actor          core.Actor
	transitionErr  error
	adjustReq      app.AdjustInventoryRequest
	idempotencyKey string
	qcOutcome      *core.QCOutcome
	createSKUReq   app.CreateSKURequest
}

func (f *fakeService) TransitionBatch(_ context.Context, actor core.Actor, id int, action string) (*app.TransitionResult, error) {
	f.actor = actor
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	if _, err := core.ParseBatchAction(action); err != nil {
		return nil, err
	}
	b := &core.ProductionBatch{ID: id, BatchNumber: "B-42", LifecycleState: core.StateInProgress, QCOutcome: f.qcOutcome}
	return app.NewTransitionResult(b), nil
}

func (f *fakeService) AdjustInventory(_ context.Context, actor core.Actor, req app.AdjustInventoryRequest) (*app.AdjustResult, error) {
	f.actor = actor
	f.adjustReq = req
	return &app.AdjustResult{InventoryID: 9, Quantity: decimal.NewFromInt(0), Available: decimal.NewFromInt(0)}, nil
}

func (f *fakeService) ReceivePurchase(_ context.Context, _ core.Actor, req app.PurchaseReceiptRequest) (*app.PurchaseReceiptResult, error) {
	f.idempotencyKey = req.IdempotencyKey
	return &app.PurchaseReceiptResult{Reference: req.Reference}, nil
}

func (f *fakeService) CreateSKU(_ context.Context, _ core.Actor, req app.CreateSKURequest) (*app.SKUResult, error) {
	f.createSKUReq = req
	return &app.SKUResult{SKU: &core.SKU{ID: 11, Code: req.Code, Name: req.Name}}, nil
}

func (f *fakeService) RecordQCCheck(_ context.Context, actor core.Actor, batchID int, req app.QCCheckRequest) (*core.QCCheck, error) {
	f.actor = actor
	checkedBy := actor.UserID
	return &core.QCCheck{ID: 1, BatchID: batchID, CheckType: req.CheckType, Result: core.QCOutcome(req.Result), CheckedBy: &checkedBy}, nil
}

func signToken(t *testing.T, claims jwtClaims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func newTestServer(svc app.ApplicationService) http.Handler {
	return NewHandler(svc, zap.NewNop(), Options{JWTSecret: testSecret})
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}), http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestRequireAuth(t *testing.T) {
	h := newTestServer(&fakeService{})
	valid := jwtClaims{UserID: 3, OrganizationID: 1, Role: "production"}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	otherKey, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, valid).SignedString([]byte("wrong"))

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage", "not-a-jwt"},
		{"expired", signToken(t, expired)},
		{"wrong key", otherKey},
		{"no identity", signToken(t, jwtClaims{Role: "admin"})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/batches/1/transition", tc.token, `{"action":"start"}`)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("want 401, got %d: %s", rec.Code, rec.Body.String())
			}
			if code := decodeBody(t, rec)["code"]; code != "UNAUTHORIZED" {
				t.Errorf("want code UNAUTHORIZED, got %v", code)
			}
		})
	}
}

func TestRequireAuth_Cookie(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/batches/5/transition", strings.NewReader(`{"action":"start"}`))
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: signToken(t, jwtClaims{UserID: 3, OrganizationID: 2, Role: "production"})})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.actor.UserID != 3 || svc.actor.OrganizationID != 2 || svc.actor.Role != "production" {
		t.Errorf("actor not taken from token: %+v", svc.actor)
	}
	if svc.actor.RequestID == "" {
		t.Error("actor should carry the request id")
	}
}

func TestTransitionBatch(t *testing.T) {
	token := signToken(t, jwtClaims{UserID: 3, OrganizationID: 1, Role: "production"})

	t.Run("ok", func(t *testing.T) {
		rec := do(t, newTestServer(&fakeService{}), http.MethodPost, "/api/batches/42/transition", token, `{"action":"START"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["batchId"] != float64(42) || body["status"] != "IN_PROGRESS" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("qc outcome stays out of status", func(t *testing.T) {
		pass := core.QCPass
		rec := do(t, newTestServer(&fakeService{qcOutcome: &pass}), http.MethodPost, "/api/batches/42/transition", token, `{"action":"start"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["status"] != "IN_PROGRESS" {
			t.Errorf("status must be the lifecycle state, got %v", body["status"])
		}
		if body["displayStatus"] != "IN_PROGRESS/QC_PASSED" {
			t.Errorf("displayStatus: got %v", body["displayStatus"])
		}
	})

	errorCases := []struct {
		name     string
		path     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"unknown action", "/api/batches/42/transition", `{"action":"finish"}`, nil, http.StatusBadRequest, "INVALID_ACTION"},
		{"missing batch", "/api/batches/42/transition", `{"action":"start"}`, core.ErrBatchNotFound, http.StatusNotFound, "BATCH_NOT_FOUND"},
		{"terminal state", "/api/batches/42/transition", `{"action":"complete"}`, fmt.Errorf("%w: batch is COMPLETED", core.ErrInvalidTransition), http.StatusConflict, "CONFLICT"},
		{"short stock", "/api/batches/42/transition", `{"action":"complete"}`, fmt.Errorf("sku FLOUR: %w", core.ErrInsufficientStock), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"forbidden", "/api/batches/42/transition", `{"action":"start"}`, core.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"bad id", "/api/batches/abc/transition", `{"action":"start"}`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"bad json", "/api/batches/42/transition", `{"action":`, nil, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeService{transitionErr: tc.err}), http.MethodPost, tc.path, token, tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("want %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
			if code := decodeBody(t, rec)["code"]; code != tc.wantErr {
				t.Errorf("want code %s, got %v", tc.wantErr, code)
			}
		})
	}
}

func TestAdjustInventory(t *testing.T) {
	svc := &fakeService{}
	token := signToken(t, jwtClaims{UserID: 3, OrganizationID: 1, Role: "inventory"})

	rec := do(t, newTestServer(svc), http.MethodPost, "/api/inventory/adjust", token,
		`{"sku":"FLOUR","locationId":2,"delta":"-1000","reason":"spoilage"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.adjustReq.SKU != "FLOUR" || svc.adjustReq.LocationID != 2 || !svc.adjustReq.Delta.Equal(decimal.NewFromInt(-1000)) {
		t.Errorf("request not decoded: %+v", svc.adjustReq)
	}
	body := decodeBody(t, rec)
	if body["inventoryId"] != float64(9) || body["quantity"] != "0" || body["available"] != "0" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestReceivePurchase_IdempotencyKeyHeader(t *testing.T) {
	svc := &fakeService{}
	token := signToken(t, jwtClaims{UserID: 3, OrganizationID: 1, Role: "inventory"})

	req := httptest.NewRequest(http.MethodPost, "/api/purchase-receipts",
		strings.NewReader(`{"locationId":1,"reference":"PO-7","items":[{"skuName":"Flour","quantity":"10"}]}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", "delivery-7")
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.idempotencyKey != "delivery-7" {
		t.Errorf("idempotency key not forwarded, got %q", svc.idempotencyKey)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{core.ErrUnauthorized, 401, "UNAUTHORIZED"},
		{core.ErrForbidden, 403, "FORBIDDEN"},
		{core.ErrInvalidAction, 400, "INVALID_ACTION"},
		{core.ErrYieldNotRecorded, 400, "VALIDATION_ERROR"},
		{core.ErrSKUNotFound, 404, "SKU_NOT_FOUND"},
		{core.ErrInventoryNotFound, 404, "INVENTORY_NOT_FOUND"},
		{fmt.Errorf("load: %w", core.ErrBatchNotFound), 404, "BATCH_NOT_FOUND"},
		{core.ErrLotNotFound, 404, "NOT_FOUND"},
		{core.ErrInsufficientStock, 409, "INSUFFICIENT_STOCK"},
		{core.ErrDuplicate, 409, "CONFLICT"},
		{core.ErrInvalidTransition, 409, "CONFLICT"},
		{errors.New("connection refused"), 500, "INTERNAL_ERROR"},
	}
	for _, tc := range tests {
		status, code := errorStatus(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("errorStatus(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	cases := []struct {
		header string
		keep   bool
	}{
		{"abc-123", true},
		{"", false},
		{"has spaces", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		if tc.header != "" {
			req.Header.Set("X-Request-ID", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-ID")
		if got != seen {
			t.Errorf("%q: header %q differs from context %q", tc.header, got, seen)
		}
		if tc.keep && got != tc.header {
			t.Errorf("%q: want caller id kept, got %q", tc.header, got)
		}
		if !tc.keep && (got == tc.header || got == "") {
			t.Errorf("%q: want a generated id, got %q", tc.header, got)
		}
	}
}

func TestCORS(t *testing.T) {
	h := CORS(" https://ops.example.com , https://pos.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/inventory", nil)
	req.Header.Set("Origin", "https://pos.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: want 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://pos.example.com" {
		t.Errorf("allowed origin: got %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key") {
		t.Error("Idempotency-Key should be an allowed header")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/inventory", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Errorf("non-preflight request should reach the handler, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin must not be allowed, got %q", got)
	}
}

func TestCreateSKU_SeedStockFields(t *testing.T) {
	svc := &fakeService{}
	token := signToken(t, jwtClaims{UserID: 3, OrganizationID: 1, Role: "manager"})

	rec := do(t, newTestServer(svc), http.MethodPost, "/api/skus", token,
		`{"code":"RYE","name":"Rye flour","category":"RAW","unit":"kg",
		  "locations":[{"locationId":1,"currentStock":"40","reorderPoint":"5","reorderQuantity":"20"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.createSKUReq.Locations) != 1 {
		t.Fatalf("want one seed location, got %+v", svc.createSKUReq.Locations)
	}
	seed := svc.createSKUReq.Locations[0]
	if seed.LocationID != 1 {
		t.Errorf("locationId: got %d", seed.LocationID)
	}
	if !seed.CurrentStock.Equal(decimal.NewFromInt(40)) {
		t.Errorf("currentStock: want 40, got %s", seed.CurrentStock)
	}
	if !seed.ReorderPoint.Equal(decimal.NewFromInt(5)) {
		t.Errorf("reorderPoint: want 5, got %s", seed.ReorderPoint)
	}
	if !seed.ReorderQuantity.Equal(decimal.NewFromInt(20)) {
		t.Errorf("reorderQuantity: want 20, got %s", seed.ReorderQuantity)
	}
}

func TestRecordQCCheck_AttributedToCaller(t *testing.T) {
	svc := &fakeService{}
	token := signToken(t, jwtClaims{UserID: 3, OrganizationID: 1, Role: "qc"})

	rec := do(t, newTestServer(svc), http.MethodPost, "/api/batches/42/qc-checks", token,
		`{"checkType":"visual","result":"PASS","checkedBy":99}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.actor.UserID != 3 {
		t.Errorf("want caller 3 from the token, got %d", svc.actor.UserID)
	}
	if body := decodeBody(t, rec); body["checked_by"] != float64(3) {
		t.Errorf("checked_by: want 3, got %v", body["checked_by"])
	}
}
