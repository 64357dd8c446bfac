package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/itsyousal/TDHEMS-sub002/internal/app"
	"github.com/itsyousal/TDHEMS-sub002/internal/core"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// These cases all fail before any query runs, so the service is built without a pool.

type recordingGateway struct {
	core.Gateway
	recorded []error
}

func (g *recordingGateway) Record(ctx context.Context, actor core.Actor, action, resource string, err error) {
	g.recorded = append(g.recorded, err)
	g.Gateway.Record(ctx, actor, action, resource, err)
}

type usedKeys map[string]bool

func (u usedKeys) Claim(_ context.Context, _ string, _ int, key string) (bool, error) {
	if u[key] {
		return false, nil
	}
	u[key] = true
	return true, nil
}

func (u usedKeys) Forget(_ context.Context, _ string, _ int, key string) error {
	delete(u, key)
	return nil
}

func newService(t *testing.T, guard app.IdempotencyGuard) (app.ApplicationService, *recordingGateway) {
	t.Helper()
	policy, err := core.ParsePolicyYAML([]byte("roles:\n  admin: [\"*\"]\n  viewer: []\n"))
	if err != nil {
		t.Fatal(err)
	}
	gate := &recordingGateway{Gateway: core.NewPolicyGateway(nil, policy, zap.NewNop())}
	return app.NewAppService(nil, gate, guard, zap.NewNop()), gate
}

var (
	admin  = core.Actor{UserID: 1, OrganizationID: 1, Role: "admin"}
	viewer = core.Actor{UserID: 2, OrganizationID: 1, Role: "viewer"}
)

func TestReadsRequireIdentity(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.ListBatches(ctx, core.Actor{}, core.BatchFilter{}); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("ListBatches: want ErrUnauthorized, got %v", err)
	}
	if _, err := svc.GetStockLevels(ctx, core.Actor{UserID: 1}, core.StockFilter{}); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("GetStockLevels without organization: want ErrUnauthorized, got %v", err)
	}
	if _, err := svc.TraceLot(ctx, core.Actor{OrganizationID: 1}, "B-1"); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("TraceLot without user: want ErrUnauthorized, got %v", err)
	}
}

func TestMutationsAreAuthorized(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.AdjustInventory(ctx, viewer, app.AdjustInventoryRequest{SKU: "FLOUR", LocationID: 1, Delta: decimal.NewFromInt(-1)})
	if !errors.Is(err, core.ErrForbidden) {
		t.Errorf("AdjustInventory: want ErrForbidden, got %v", err)
	}
	if _, err := svc.TransitionBatch(ctx, viewer, 1, "start"); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("TransitionBatch: want ErrForbidden, got %v", err)
	}
	if _, err := svc.RecordQCCheck(ctx, viewer, 1, app.QCCheckRequest{CheckType: "visual", Result: "PASS"}); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("RecordQCCheck: want ErrForbidden, got %v", err)
	}
}

func TestTransitionBatch_UnknownAction(t *testing.T) {
	svc, gate := newService(t, nil)

	_, err := svc.TransitionBatch(context.Background(), admin, 1, "finish")
	if !errors.Is(err, core.ErrInvalidAction) {
		t.Fatalf("want ErrInvalidAction, got %v", err)
	}
	if len(gate.recorded) != 1 || !errors.Is(gate.recorded[0], core.ErrInvalidAction) {
		t.Errorf("failed mutation should be recorded with its error, got %v", gate.recorded)
	}
}

func TestCreateBatch_BadPlannedDate(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.CreateBatch(context.Background(), admin, app.CreateBatchRequest{BatchNumber: "B-1", PlannedDate: "16/10/2026"})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestReceivePurchase_ReusedIdempotencyKey(t *testing.T) {
	keys := usedKeys{"delivery-7": true}
	svc, _ := newService(t, keys)

	_, err := svc.ReceivePurchase(context.Background(), admin, app.PurchaseReceiptRequest{
		LocationID: 1, Reference: "PO-7", IdempotencyKey: "delivery-7",
	})
	if !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	if !keys["delivery-7"] {
		t.Error("a rejected duplicate must not release the original claim")
	}
}

func TestReceivePurchase_FailedReceiptReleasesKey(t *testing.T) {
	keys := usedKeys{}
	svc, _ := newService(t, keys)

	_, err := svc.ReceivePurchase(context.Background(), admin, app.PurchaseReceiptRequest{
		LocationID: 1, Reference: "PO-8", IdempotencyKey: "delivery-8",
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("receipt without items: want ErrValidation, got %v", err)
	}
	if keys["delivery-8"] {
		t.Error("key should be released after a failed receipt so the client can retry")
	}
}
