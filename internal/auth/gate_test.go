package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestGate(t *testing.T) (*Gate, *MemRoleStore, *MemAuditSink) {
	t.Helper()
	roles := NewMemRoleStore()
	sink := NewMemAuditSink()
	gate, err := NewGate(roles, sink)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return gate, roles, sink
}

func mustUpsert(t *testing.T, roles *MemRoleStore, accountID string, role Role, status Status) {
	t.Helper()
	err := roles.Upsert(context.Background(), RoleAssignment{
		AccountID: accountID, Role: role, Status: status,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestAuthorizeDefaultsToActiveUser(t *testing.T) {
	gate, roles, _ := newTestGate(t)
	ctx := context.Background()

	// No row at all behaves exactly like an explicit {user, active} row.
	if err := gate.Authorize(ctx, "ghost", ActionViewDashboard); err != nil {
		t.Fatalf("implicit default: %v", err)
	}
	mustUpsert(t, roles, "explicit", RoleUser, StatusActive)
	if err := gate.Authorize(ctx, "explicit", ActionViewDashboard); err != nil {
		t.Fatalf("explicit default: %v", err)
	}

	if err := gate.Authorize(ctx, "ghost", ActionViewAdminPanel); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
	if err := gate.Authorize(ctx, "explicit", ActionViewAdminPanel); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
}

func TestAuthorizeDisabledAccount(t *testing.T) {
	gate, roles, _ := newTestGate(t)
	ctx := context.Background()

	for _, status := range []Status{StatusFired, StatusBlocked} {
		mustUpsert(t, roles, "victim", RoleEmployee, status)
		err := gate.Authorize(ctx, "victim", ActionViewDashboard)
		if !errors.Is(err, ErrAccountDisabled) {
			t.Fatalf("status %s: expected ErrAccountDisabled, got %v", status, err)
		}
	}
}

func TestAuthorizeRoleLadder(t *testing.T) {
	gate, roles, _ := newTestGate(t)
	ctx := context.Background()

	mustUpsert(t, roles, "emp", RoleEmployee, StatusActive)
	if err := gate.Authorize(ctx, "emp", ActionViewReports); err != nil {
		t.Fatalf("employee on view_reports: %v", err)
	}
	if err := gate.Authorize(ctx, "emp", ActionManageUsers); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}

	mustUpsert(t, roles, "boss", RoleAdmin, StatusActive)
	for _, action := range []string{ActionViewDashboard, ActionViewReports, ActionViewAdminPanel, ActionManageUsers} {
		if err := gate.Authorize(ctx, "boss", action); err != nil {
			t.Fatalf("admin on %s: %v", action, err)
		}
	}
}

func TestSetStatusRequiresAdmin(t *testing.T) {
	gate, roles, _ := newTestGate(t)
	ctx := context.Background()

	mustUpsert(t, roles, "emp", RoleEmployee, StatusActive)
	mustUpsert(t, roles, "target", RoleUser, StatusActive)

	err := gate.SetStatus(ctx, "emp", "target", StatusBlocked)
	if !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
	// Actor with no assignment at all is a plain user and is refused too.
	err = gate.SetStatus(ctx, "nobody", "target", StatusBlocked)
	if !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
}

func TestSetStatusNeverTargetsAdmin(t *testing.T) {
	gate, roles, _ := newTestGate(t)
	ctx := context.Background()

	mustUpsert(t, roles, "boss", RoleAdmin, StatusActive)
	mustUpsert(t, roles, "boss2", RoleAdmin, StatusActive)

	for _, status := range []Status{StatusFired, StatusBlocked, StatusActive} {
		err := gate.SetStatus(ctx, "boss", "boss2", status)
		if !errors.Is(err, ErrTargetIsAdmin) {
			t.Fatalf("status %s: expected ErrTargetIsAdmin, got %v", status, err)
		}
	}

	got, err := roles.Get(ctx, "boss2")
	if err != nil || got.Status != StatusActive {
		t.Fatalf("admin assignment must be untouched, got %+v err=%v", got, err)
	}
}

func TestSetStatusIdempotent(t *testing.T) {
	gate, roles, sink := newTestGate(t)
	ctx := context.Background()

	mustUpsert(t, roles, "boss", RoleAdmin, StatusActive)
	mustUpsert(t, roles, "emp", RoleEmployee, StatusActive)

	if err := gate.SetStatus(ctx, "boss", "emp", StatusFired); err != nil {
		t.Fatalf("first SetStatus: %v", err)
	}
	if err := gate.SetStatus(ctx, "boss", "emp", StatusFired); err != nil {
		t.Fatalf("second SetStatus: %v", err)
	}

	got, err := roles.Get(ctx, "emp")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusFired || got.Role != RoleEmployee {
		t.Fatalf("unexpected assignment after retry: %+v", got)
	}

	// The retry's audit entry is distinguishable: its detail names an
	// unchanged prior status.
	entries := sink.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if !strings.Contains(entries[0].Detail, "from=active to=fired") {
		t.Fatalf("first entry detail: %q", entries[0].Detail)
	}
	if !strings.Contains(entries[1].Detail, "from=fired to=fired") {
		t.Fatalf("second entry detail: %q", entries[1].Detail)
	}
}

func TestSetStatusCreatesDefaultRow(t *testing.T) {
	gate, roles, _ := newTestGate(t)
	ctx := context.Background()

	mustUpsert(t, roles, "boss", RoleAdmin, StatusActive)

	// Target with no assignment gets the lazy default row first, then the
	// transition applies to it.
	if err := gate.SetStatus(ctx, "boss", "newcomer", StatusBlocked); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, err := roles.Get(ctx, "newcomer")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Role != RoleUser || got.Status != StatusBlocked {
		t.Fatalf("unexpected assignment: %+v", got)
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	gate, roles, _ := newTestGate(t)
	mustUpsert(t, roles, "boss", RoleAdmin, StatusActive)

	err := gate.SetStatus(context.Background(), "boss", "emp", Status("vaporized"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSetStatusDisabledActor(t *testing.T) {
	gate, roles, _ := newTestGate(t)
	ctx := context.Background()

	mustUpsert(t, roles, "exboss", RoleAdmin, StatusActive)
	mustUpsert(t, roles, "emp", RoleEmployee, StatusActive)

	// A fired admin cannot act, whatever their role says. The row has to
	// be written directly since SetStatus itself refuses admin targets.
	mustUpsert(t, roles, "exboss", RoleAdmin, StatusBlocked)
	err := gate.SetStatus(ctx, "exboss", "emp", StatusFired)
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}
