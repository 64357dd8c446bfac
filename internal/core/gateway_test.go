package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/itsyousal/TDHEMS-sub002/internal/core"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const testPolicy = `
roles:
  Admin: ["*"]
  production:
    - batch.*
    - QC.Record
  viewer: []
`

func TestParsePolicyYAML(t *testing.T) {
	p, err := core.ParsePolicyYAML([]byte(testPolicy))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	tests := []struct {
		role, action string
		want         bool
	}{
		{"admin", core.PermSKUCreate, true},
		{"ADMIN", core.PermInventoryAdjust, true},
		{"production", core.PermBatchTransition, true},
		{"production", core.PermBatchYield, true},
		{"production", core.PermQCRecord, true},
		{"production", core.PermInventoryAdjust, false},
		{"production", "batchx.create", false},
		{"viewer", core.PermQCRecord, false},
		{"unknown", core.PermSKUCreate, false},
		{"", core.PermSKUCreate, false},
	}
	for _, tc := range tests {
		if got := p.Allows(tc.role, tc.action); got != tc.want {
			t.Errorf("Allows(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}

	var nilPolicy *core.Policy
	if nilPolicy.Allows("admin", core.PermSKUCreate) {
		t.Error("nil policy must deny everything")
	}
}

func TestParsePolicyYAML_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":    "  \n",
		"no roles": "roles: {}\n",
		"garbage":  "roles: [not, a, map]\n",
	} {
		if _, err := core.ParsePolicyYAML([]byte(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

type auditRow struct {
	action, resource, outcome string
}

type fakeExecer struct {
	rows []auditRow
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.rows = append(f.rows, auditRow{
		action:   args[2].(string),
		resource: args[3].(string),
		outcome:  args[4].(string),
	})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestPolicyGateway_Authorize(t *testing.T) {
	policy, err := core.ParsePolicyYAML([]byte(testPolicy))
	if err != nil {
		t.Fatal(err)
	}
	db := &fakeExecer{}
	gate := core.NewPolicyGateway(db, policy, zap.NewNop())
	ctx := context.Background()

	anonymous := core.Actor{Role: "admin"}
	if err := gate.Authorize(ctx, anonymous, core.PermSKUCreate); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("missing identity: want ErrUnauthorized, got %v", err)
	}
	if len(db.rows) != 0 {
		t.Errorf("unauthenticated calls are not audited, got %v", db.rows)
	}

	operator := core.Actor{UserID: 7, OrganizationID: 1, Role: "production", RequestID: "req-1"}
	if err := gate.Authorize(ctx, operator, core.PermBatchTransition); err != nil {
		t.Fatalf("permitted action rejected: %v", err)
	}

	err = gate.Authorize(ctx, operator, core.PermInventoryAdjust)
	if !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if len(db.rows) != 1 || db.rows[0].outcome != "FORBIDDEN" || db.rows[0].action != core.PermInventoryAdjust {
		t.Errorf("denied action should be audited as FORBIDDEN, got %v", db.rows)
	}
}

func TestPolicyGateway_Record(t *testing.T) {
	db := &fakeExecer{}
	gate := core.NewPolicyGateway(db, nil, zap.NewNop())
	actor := core.Actor{UserID: 1, OrganizationID: 1, Role: "admin"}
	ctx := context.Background()

	gate.Record(ctx, actor, core.PermBatchTransition, "batch:4", nil)
	gate.Record(ctx, actor, core.PermBatchTransition, "batch:4", core.ErrInvalidTransition)

	want := []auditRow{
		{core.PermBatchTransition, "batch:4", "SUCCESS"},
		{core.PermBatchTransition, "batch:4", "FAILURE"},
	}
	if len(db.rows) != len(want) {
		t.Fatalf("want %d audit rows, got %d", len(want), len(db.rows))
	}
	for i := range want {
		if db.rows[i] != want[i] {
			t.Errorf("row %d: want %+v, got %+v", i, want[i], db.rows[i])
		}
	}

	// A failing audit insert is logged, never surfaced.
	failing := core.NewPolicyGateway(&fakeExecer{err: errors.New("connection reset")}, nil, zap.NewNop())
	failing.Record(ctx, actor, core.PermQCRecord, "batch:4", nil)

	// Without a database the gateway only logs.
	core.NewPolicyGateway(nil, nil, zap.NewNop()).Record(ctx, actor, core.PermQCRecord, "", nil)
}
