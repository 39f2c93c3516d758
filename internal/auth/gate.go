package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"securelogin/internal/ids"
	"securelogin/internal/obs"
)

// Gate is the authorization check behind every protected operation. It
// reads the same RoleStore the login flow uses, so a status change takes
// effect on the very next request.
type Gate struct {
	roles   RoleStore
	audit   AuditSink
	policy  Policy
	timeout time.Duration
	now     func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGatePolicy replaces the default action table.
func WithGatePolicy(p Policy) GateOption {
	return func(g *Gate) {
		if p.minRole != nil {
			g.policy = p
		}
	}
}

// WithGateTimeout bounds role lookups and audit writes.
func WithGateTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithGateClock overrides the time source (tests).
func WithGateClock(fn func() time.Time) GateOption {
	return func(g *Gate) {
		if fn != nil {
			g.now = fn
		}
	}
}

// NewGate constructs the access gate.
func NewGate(roles RoleStore, audit AuditSink, opts ...GateOption) (*Gate, error) {
	if roles == nil {
		return nil, errors.New("auth: role store is required")
	}
	if audit == nil {
		return nil, errors.New("auth: audit sink is required")
	}
	g := &Gate{
		roles:   roles,
		audit:   audit,
		policy:  DefaultPolicy(),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Authorize decides whether accountID may perform action. nil means allow;
// a taxonomy error names the denial reason. An account with no assignment
// row behaves exactly like an explicit {user, active} one.
func (g *Gate) Authorize(ctx context.Context, accountID, action string) error {
	assignment, err := g.assignment(ctx, accountID)
	if err != nil {
		return err
	}
	if assignment.Status != StatusActive {
		return fmt.Errorf("%w: status %s", ErrAccountDisabled, assignment.Status)
	}
	if !g.policy.Permits(assignment.Role, action) {
		return fmt.Errorf("%w: %s requires more than %s", ErrInsufficientRole, action, assignment.Role)
	}
	return nil
}

// SetStatus applies a status transition to the target account on behalf of
// actorID. The actor must hold manage_users; admin accounts can never be
// targeted through this path (the schema enforces the same invariant).
// Retrying the same transition is safe: the stored state converges after
// the first application and later audit entries carry the unchanged prior
// status.
func (g *Gate) SetStatus(ctx context.Context, actorID, targetID string, newStatus Status) error {
	if !ValidStatus(newStatus) {
		return fmt.Errorf("%w: status %q", ErrInvalidInput, newStatus)
	}
	if err := g.Authorize(ctx, actorID, ActionManageUsers); err != nil {
		return err
	}
	target, err := g.assignment(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Role == RoleAdmin {
		return fmt.Errorf("%w: %s", ErrTargetIsAdmin, targetID)
	}

	prior := target.Status
	target.Status = newStatus
	target.UpdatedAt = g.now().UTC()
	{
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		err = g.roles.Upsert(cctx, target)
		cancel()
	}
	if err != nil {
		return fmt.Errorf("%w: upsert assignment: %v", ErrTransient, err)
	}

	g.appendAudit(ctx, AuditEntry{
		AccountID: targetID,
		Action:    "status_changed",
		Detail:    fmt.Sprintf("actor=%s target=%s from=%s to=%s", actorID, targetID, prior, newStatus),
	})
	return nil
}

// Assignments lists every role assignment for the admin panel. The caller
// is expected to have passed Authorize(actor, manage_users) already.
func (g *Gate) Assignments(ctx context.Context) ([]RoleAssignment, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	list, err := g.roles.List(cctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list assignments: %v", ErrTransient, err)
	}
	return list, nil
}

// EnsureAssignment creates the lazy default {user, active} row if the
// account has none. Called at signup.
func (g *Gate) EnsureAssignment(ctx context.Context, accountID string) error {
	_, err := g.assignment0(ctx, accountID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	assignment := DefaultAssignment(accountID)
	assignment.CreatedAt = g.now().UTC()
	assignment.UpdatedAt = assignment.CreatedAt
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.roles.Upsert(cctx, assignment); err != nil {
		return fmt.Errorf("%w: create assignment: %v", ErrTransient, err)
	}
	return nil
}

// assignment loads the row or falls back to the implicit default.
func (g *Gate) assignment(ctx context.Context, accountID string) (RoleAssignment, error) {
	assignment, err := g.assignment0(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return DefaultAssignment(accountID), nil
	}
	return assignment, err
}

func (g *Gate) assignment0(ctx context.Context, accountID string) (RoleAssignment, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	assignment, err := g.roles.Get(cctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RoleAssignment{}, err
		}
		return RoleAssignment{}, fmt.Errorf("%w: load assignment: %v", ErrTransient, err)
	}
	return assignment, nil
}

func (g *Gate) appendAudit(ctx context.Context, entry AuditEntry) {
	entry.ID = ids.New()
	entry.CreatedAt = g.now().UTC()
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.audit.Append(cctx, entry); err != nil {
		obs.LogEvent("audit_error", map[string]any{
			"action": entry.Action,
			"error":  err.Error(),
		})
	}
}
