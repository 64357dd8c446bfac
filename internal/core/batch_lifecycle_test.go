package core_test

import (
	"errors"
	"testing"

	"github.com/itsyousal/TDHEMS-sub002/internal/core"

	"github.com/shopspring/decimal"
)

func TestNextState(t *testing.T) {
	tests := []struct {
		from    core.LifecycleState
		action  core.BatchAction
		want    core.LifecycleState
		wantErr bool
	}{
		{core.StatePlanned, core.ActionStart, core.StateInProgress, false},
		{core.StatePlanned, core.ActionDelay, core.StateDelayed, false},
		{core.StatePlanned, core.ActionComplete, core.StateCompleted, false},

		{core.StateInProgress, core.ActionStart, "", true},
		{core.StateInProgress, core.ActionDelay, core.StateDelayed, false},
		{core.StateInProgress, core.ActionComplete, core.StateCompleted, false},

		{core.StateDelayed, core.ActionStart, core.StateInProgress, false},
		{core.StateDelayed, core.ActionDelay, "", true},
		{core.StateDelayed, core.ActionComplete, core.StateCompleted, false},

		{core.StateCompleted, core.ActionStart, "", true},
		{core.StateCompleted, core.ActionDelay, "", true},
		{core.StateCompleted, core.ActionComplete, "", true},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"/"+string(tc.action), func(t *testing.T) {
			got, err := core.NextState(tc.from, tc.action)
			if tc.wantErr {
				if !errors.Is(err, core.ErrInvalidTransition) {
					t.Fatalf("want ErrInvalidTransition, got %v", err)
				}
				if got != tc.from {
					t.Errorf("rejected transition should leave state at %s, got %s", tc.from, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestParseBatchAction(t *testing.T) {
	for in, want := range map[string]core.BatchAction{
		"start":      core.ActionStart,
		"COMPLETE":   core.ActionComplete,
		" Delay ":    core.ActionDelay,
		"complete\n": core.ActionComplete,
	} {
		got, err := core.ParseBatchAction(in)
		if err != nil {
			t.Errorf("ParseBatchAction(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseBatchAction(%q) = %s, want %s", in, got, want)
		}
	}

	for _, in := range []string{"", "finish", "cancel", "qc_pass"} {
		_, err := core.ParseBatchAction(in)
		if !errors.Is(err, core.ErrInvalidAction) {
			t.Errorf("ParseBatchAction(%q): want ErrInvalidAction, got %v", in, err)
		}
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("ParseBatchAction(%q): invalid action should be a validation error", in)
		}
	}
}

func TestProductionBatch_DisplayStatus(t *testing.T) {
	outcome := func(o core.QCOutcome) *core.QCOutcome { return &o }
	tests := []struct {
		state core.LifecycleState
		qc    *core.QCOutcome
		want  string
	}{
		{core.StatePlanned, nil, "PLANNED"},
		{core.StateCompleted, nil, "COMPLETED"},
		{core.StateCompleted, outcome(core.QCPass), "COMPLETED/QC_PASSED"},
		{core.StateCompleted, outcome(core.QCFail), "COMPLETED/QC_FAILED"},
		{core.StateInProgress, outcome(core.QCRework), "IN_PROGRESS/QC_REWORK"},
	}
	for _, tc := range tests {
		b := core.ProductionBatch{LifecycleState: tc.state, QCOutcome: tc.qc}
		if got := b.DisplayStatus(); got != tc.want {
			t.Errorf("DisplayStatus(%s, %v) = %q, want %q", tc.state, tc.qc, got, tc.want)
		}
	}
}

func TestBatchIngredient_ConsumptionQuantity(t *testing.T) {
	planned := core.BatchIngredient{RequiredQuantity: qty("4")}
	if got := planned.ConsumptionQuantity(); !got.Equal(qty("4")) {
		t.Errorf("without usage want required quantity 4, got %s", got)
	}

	used := qty("3.25")
	recorded := core.BatchIngredient{RequiredQuantity: qty("4"), UsedQuantity: &used}
	if got := recorded.ConsumptionQuantity(); !got.Equal(used) {
		t.Errorf("with usage want 3.25, got %s", got)
	}

	zero := decimal.Zero
	none := core.BatchIngredient{RequiredQuantity: qty("4"), UsedQuantity: &zero}
	if got := none.ConsumptionQuantity(); !got.IsZero() {
		t.Errorf("recorded zero usage should consume nothing, got %s", got)
	}
}

func TestQCOutcome_Valid(t *testing.T) {
	for _, o := range []core.QCOutcome{core.QCPass, core.QCFail, core.QCRework} {
		if !o.Valid() {
			t.Errorf("%s should be valid", o)
		}
	}
	if core.QCOutcome("pass").Valid() || core.QCOutcome("").Valid() {
		t.Error("outcomes are case-sensitive and non-empty")
	}
}
