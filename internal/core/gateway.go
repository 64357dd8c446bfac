package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Actor is the authenticated caller of a mutation. Identity is issued externally;
// this service only consumes it.
type Actor struct {
	UserID         int
	OrganizationID int
	Role           string
	RequestID      string
}

// Permission actions checked before each mutation.
const (
	PermSKUCreate        = "sku.create"
	PermLocationCreate   = "location.create"
	PermInventoryAdjust  = "inventory.adjust"
	PermInventoryReserve = "inventory.reserve"
	PermPurchaseReceive  = "purchase.receive"
	PermBatchCreate      = "batch.create"
	PermBatchTransition  = "batch.transition"
	PermBatchYield       = "batch.yield"
	PermBatchIngredient  = "batch.ingredient"
	PermQCRecord         = "qc.record"
)

// Gateway is the permission and audit contract every mutation goes through:
// Authorize before any write, Record after it with the outcome.
type Gateway interface {
	Authorize(ctx context.Context, actor Actor, action string) error
	Record(ctx context.Context, actor Actor, action, resource string, err error)
}

// Policy maps role names to the actions they may perform. "*" grants every action.
type Policy struct {
	Roles map[string][]string `yaml:"roles"`
}

// ParsePolicyYAML decodes a policy document of the form:
//
//	roles:
//	  admin: ["*"]
//	  production: [batch.create, batch.transition]
func ParsePolicyYAML(data []byte) (*Policy, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("policy: document is empty")
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policy: decode: %w", err)
	}
	if len(p.Roles) == 0 {
		return nil, fmt.Errorf("policy: no roles defined")
	}
	normalized := make(map[string][]string, len(p.Roles))
	for role, actions := range p.Roles {
		role = strings.ToLower(strings.TrimSpace(role))
		for _, a := range actions {
			normalized[role] = append(normalized[role], strings.ToLower(strings.TrimSpace(a)))
		}
	}
	p.Roles = normalized
	return &p, nil
}

func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	p, err := ParsePolicyYAML(data)
	if err != nil {
		return nil, fmt.Errorf("policy: %s: %w", path, err)
	}
	return p, nil
}

func (p *Policy) Allows(role, action string) bool {
	if p == nil {
		return false
	}
	action = strings.ToLower(action)
	for _, a := range p.Roles[strings.ToLower(role)] {
		if a == "*" || a == action {
			return true
		}
		// "batch.*" grants every batch action.
		if strings.HasSuffix(a, ".*") && strings.HasPrefix(action, strings.TrimSuffix(a, "*")) {
			return true
		}
	}
	return false
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type policyGateway struct {
	db     execer
	policy *Policy
	log    *zap.Logger
}

// NewPolicyGateway checks actions against policy and writes audit_log rows through db.
// db is usually the *pgxpool.Pool; a nil db only logs.
func NewPolicyGateway(db execer, policy *Policy, log *zap.Logger) Gateway {
	return &policyGateway{db: db, policy: policy, log: log}
}

func (g *policyGateway) Authorize(ctx context.Context, actor Actor, action string) error {
	if actor.UserID == 0 || actor.OrganizationID == 0 {
		return fmt.Errorf("%w: no authenticated identity", ErrUnauthorized)
	}
	if !g.policy.Allows(actor.Role, action) {
		err := fmt.Errorf("%w: role %q may not %s", ErrForbidden, actor.Role, action)
		g.Record(ctx, actor, action, "", err)
		return err
	}
	return nil
}

func (g *policyGateway) Record(ctx context.Context, actor Actor, action, resource string, err error) {
	outcome, detail := "SUCCESS", ""
	switch {
	case errors.Is(err, ErrForbidden):
		outcome, detail = "FORBIDDEN", err.Error()
	case err != nil:
		outcome, detail = "FAILURE", err.Error()
	}

	g.log.Debug("audit",
		zap.String("request_id", actor.RequestID),
		zap.Int("organization_id", actor.OrganizationID),
		zap.Int("user_id", actor.UserID),
		zap.String("action", action),
		zap.String("resource", resource),
		zap.String("outcome", outcome),
	)
	if g.db == nil {
		return
	}

	var orgID, userID *int
	if actor.OrganizationID != 0 {
		orgID = &actor.OrganizationID
	}
	if actor.UserID != 0 {
		userID = &actor.UserID
	}
	// Audit is best effort: a failed insert must not turn a committed mutation into an error.
	if _, execErr := g.db.Exec(ctx, `
		INSERT INTO audit_log (organization_id, user_id, action, resource, outcome, detail, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, orgID, userID, action, resource, outcome, detail, actor.RequestID); execErr != nil {
		g.log.Error("failed to write audit log",
			zap.String("request_id", actor.RequestID),
			zap.String("action", action),
			zap.Error(execErr),
		)
	}
}
