package auth

import "errors"

// Rejection taxonomy. Credential and code mismatches are recoverable within
// the attempt (subject to lockout); role and status failures are terminal
// and need administrator intervention; transient errors are safe to retry.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNoRoleAssigned     = errors.New("auth: no role assigned")
	ErrAccountDisabled    = errors.New("auth: account disabled")
	ErrInvalidCode        = errors.New("auth: invalid code")
	ErrLockedOut          = errors.New("auth: locked out")
	ErrInsufficientRole   = errors.New("auth: insufficient role")
	ErrTargetIsAdmin      = errors.New("auth: target is admin")
	ErrTransient          = errors.New("auth: transient store error")

	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrNoSecret     = errors.New("auth: no secret on record")

	// ErrUnknownAttempt covers expired or fabricated login handles. The
	// server-held attempt is the only trusted record of step position.
	ErrUnknownAttempt = errors.New("auth: unknown login attempt")
)

// Reason codes carried on LoginResult and API error payloads.
const (
	ReasonInvalidCredentials = "InvalidCredentials"
	ReasonNoRoleAssigned     = "NoRoleAssigned"
	ReasonAccountDisabled    = "AccountDisabled"
	ReasonInvalidCode        = "InvalidCode"
	ReasonLockedOut          = "LockedOut"
	ReasonInsufficientRole   = "InsufficientRole"
	ReasonTargetIsAdmin      = "TargetIsAdmin"
	ReasonTransientError     = "TransientError"
)

// ReasonFor maps a taxonomy error to its reason code. Unknown errors map
// to TransientError so callers never see internal detail.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return ReasonInvalidCredentials
	case errors.Is(err, ErrNoRoleAssigned):
		return ReasonNoRoleAssigned
	case errors.Is(err, ErrAccountDisabled):
		return ReasonAccountDisabled
	case errors.Is(err, ErrInvalidCode):
		return ReasonInvalidCode
	case errors.Is(err, ErrLockedOut):
		return ReasonLockedOut
	case errors.Is(err, ErrInsufficientRole):
		return ReasonInsufficientRole
	case errors.Is(err, ErrTargetIsAdmin):
		return ReasonTargetIsAdmin
	default:
		return ReasonTransientError
	}
}
