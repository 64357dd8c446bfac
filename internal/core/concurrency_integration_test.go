package core_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/itsyousal/TDHEMS-sub002/internal/core"
)

func TestInventory_ConcurrentIncrementDecrementLosesNothing(t *testing.T) {
	s, ctx := setupTestDB(t)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ref := core.MovementRef{ReferenceType: "test", ReferenceID: fmt.Sprintf("in-%d", i), Reason: "delivery"}
			if _, err := s.inventory.Increment(ctx, orgID, central, flourID, dec("3"), ref); err != nil {
				errs <- fmt.Errorf("increment %d: %w", i, err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			ref := core.MovementRef{ReferenceType: "test", ReferenceID: fmt.Sprintf("out-%d", i), Reason: "usage"}
			if _, err := s.inventory.Decrement(ctx, orgID, central, flourID, dec("2"), ref); err != nil {
				errs <- fmt.Errorf("decrement %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	// 100 + 20*3 - 20*2
	quantity, reserved, available := onHand(t, ctx, s, central, flourID)
	if !quantity.Equal(dec("120")) || !reserved.IsZero() || !available.Equal(dec("120")) {
		t.Errorf("flour: want 120/0/120, got %s/%s/%s", quantity, reserved, available)
	}

	rec, err := s.inventory.GetRecord(ctx, orgID, central, flourID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	movements, err := s.inventory.ListMovements(ctx, orgID, rec.ID)
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if len(movements) != 2*workers {
		t.Errorf("want %d movements, got %d", 2*workers, len(movements))
	}
	assertNoViolations(t, ctx, s)
}

func TestBatch_ConcurrentCompletionAppliesOnce(t *testing.T) {
	s, ctx := setupTestDB(t)
	b := planCroissants(t, ctx, s, "B-2001", decPtr("50"))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.batches.Transition(ctx, orgID, b.ID, core.ActionComplete, 7)
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, core.ErrInvalidTransition):
			rejected++
		default:
			t.Errorf("unexpected completion error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("want one success and one ErrInvalidTransition, got %d and %d (%v)", succeeded, rejected, results)
	}

	lots, err := s.lots.ListLotsByBatch(ctx, orgID, b.ID)
	if err != nil {
		t.Fatalf("ListLotsByBatch: %v", err)
	}
	if len(lots) != 1 {
		t.Errorf("want exactly one lot, got %d", len(lots))
	}
	flour, _, _ := onHand(t, ctx, s, central, flourID)
	made, _, _ := onHand(t, ctx, s, central, croissant)
	if !flour.Equal(dec("95")) || !made.Equal(dec("50")) {
		t.Errorf("effects applied more than once: flour %s, croissants %s", flour, made)
	}
	assertNoViolations(t, ctx, s)
}

func TestPurchase_ConcurrentReceiptsShareNewSKU(t *testing.T) {
	s, ctx := setupTestDB(t)

	quantities := []string{"2", "3", "5"}
	var wg sync.WaitGroup
	errs := make(chan error, len(quantities))
	for i, q := range quantities {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			_, err := s.inventory.ReceivePurchase(ctx, orgID, core.PurchaseReceipt{
				LocationID: central,
				Reference:  fmt.Sprintf("PO-%d", i),
				Items:      []core.PurchaseReceiptItem{{SKUName: "Oat Milk", Quantity: dec(q), UnitPrice: dec("1.20")}},
			}, 7)
			if err != nil {
				errs <- fmt.Errorf("receipt %d: %w", i, err)
			}
		}(i, q)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	skus, err := s.skus.ListSKUs(ctx, orgID, core.CategoryRaw)
	if err != nil {
		t.Fatalf("ListSKUs: %v", err)
	}
	var oat []core.SKU
	for _, sku := range skus {
		if strings.EqualFold(sku.Name, "Oat Milk") {
			oat = append(oat, sku)
		}
	}
	if len(oat) != 1 {
		t.Fatalf("want one Oat Milk sku, got %+v", oat)
	}
	quantity, _, _ := onHand(t, ctx, s, central, oat[0].ID)
	if !quantity.Equal(dec("10")) {
		t.Errorf("oat milk: want 10, got %s", quantity)
	}
	assertNoViolations(t, ctx, s)
}

func TestInventory_AdjustZeroIsNoOp(t *testing.T) {
	s, ctx := setupTestDB(t)

	rec, err := s.inventory.AdjustBySKU(ctx, orgID, "butter", central, dec("0"), core.MovementRef{Reason: "recount"})
	if err != nil {
		t.Fatalf("zero adjust: %v", err)
	}
	if !rec.Quantity.Equal(dec("20")) || !rec.ReservedQuantity.Equal(dec("2")) || !rec.AvailableQuantity.Equal(dec("18")) {
		t.Errorf("want 20/2/18 unchanged, got %s/%s/%s", rec.Quantity, rec.ReservedQuantity, rec.AvailableQuantity)
	}
	movements, err := s.inventory.ListMovements(ctx, orgID, rec.ID)
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if len(movements) != 0 {
		t.Errorf("zero adjust must not write a movement, got %d", len(movements))
	}
}
