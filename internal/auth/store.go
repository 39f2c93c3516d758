package auth

import (
	"context"
	"time"
)

// RoleStore persists role assignments. Get returns ErrNotFound for
// accounts without an explicit row; callers decide whether that means
// "default user" (authorization) or "fail closed" (login).
type RoleStore interface {
	Get(ctx context.Context, accountID string) (RoleAssignment, error)
	Upsert(ctx context.Context, assignment RoleAssignment) error
	List(ctx context.Context) ([]RoleAssignment, error)
}

// FactorStore persists second-factor enrollment records. Put replaces the
// whole record; concurrent re-enrollments for one account are serialized
// at the storage layer (row-level upsert).
type FactorStore interface {
	Get(ctx context.Context, accountID string) (FactorRecord, error)
	Put(ctx context.Context, record FactorRecord) error
}

// AuditSink receives security events. Append failures must surface to the
// caller so they can be logged; they never block a login decision.
type AuditSink interface {
	Append(ctx context.Context, entry AuditEntry) error
}

// AuditReader lists recent entries for the admin panel. Kept separate from
// AuditSink: the core itself only ever writes.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
}

// IdentityProvider owns password hashes and sessions. The core delegates
// every credential check and never sees a plaintext hash or token secret.
type IdentityProvider interface {
	Register(ctx context.Context, email, password, displayName string) (Account, error)
	VerifyPassword(ctx context.Context, email, password string) (accountID string, err error)
	IssueSession(ctx context.Context, accountID string) (token string, issuedAt time.Time, err error)
	CurrentAccount(ctx context.Context, token string) (accountID string, err error)
	InvalidateSessions(ctx context.Context, accountID string) error
}

// Directory exposes account profile data sourced from the identity store.
type Directory interface {
	Find(ctx context.Context, accountID string) (Account, error)
	UpdateDisplayName(ctx context.Context, accountID, displayName string) error
}

// BiometricGateway abstracts face capture. Confirm only acknowledges that
// a capture is well-formed; the match decision lives outside this system.
type BiometricGateway interface {
	Available() bool
	Capture(ctx context.Context) (BiometricSample, error)
	Confirm(ctx context.Context, accountID string, sample BiometricSample) error
}
