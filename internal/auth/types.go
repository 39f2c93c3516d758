package auth

import "time"

// Role is the coarse permission class attached to an account.
type Role string

const (
	RoleUser     Role = "user"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// roleRank orders roles for minimum-role checks: user < employee < admin.
func roleRank(r Role) int {
	switch r {
	case RoleUser:
		return 1
	case RoleEmployee:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool { return roleRank(r) > 0 }

// Status is the account lifecycle flag, independent of role. Any
// non-active status suspends access regardless of role.
type Status string

const (
	StatusActive  Status = "active"
	StatusFired   Status = "fired"
	StatusBlocked Status = "blocked"
)

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusFired, StatusBlocked:
		return true
	default:
		return false
	}
}

// Account is the identity record created at signup. Immutable except the
// display name; deactivation is modeled through Status, never deletion.
type Account struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoleAssignment maps an account to its role and status. At most one row
// per account; an account with no row behaves as {user, active}.
type RoleAssignment struct {
	AccountID string    `json:"account_id"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultAssignment is the implicit assignment for accounts without a row.
func DefaultAssignment(accountID string) RoleAssignment {
	return RoleAssignment{AccountID: accountID, Role: RoleUser, Status: StatusActive}
}

// FactorRecord holds the second-factor enrollment state for one account.
// The TOTP secret is write-once from the caller's perspective: it is shown
// a single time at enrollment and afterwards only the verifier reads it.
type FactorRecord struct {
	AccountID         string
	TOTPSecret        string
	TOTPEnrolled      bool
	BiometricTemplate []byte
	BiometricEnrolled bool
	UpdatedAt         time.Time
}

// FactorSummary is the caller-visible view of a FactorRecord. It never
// carries the secret or the template.
type FactorSummary struct {
	TOTPEnrolled      bool `json:"totp_enrolled"`
	BiometricEnrolled bool `json:"biometric_enrolled"`
}

// AuditEntry is one immutable row of the append-only security log.
type AuditEntry struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Principal is the authenticated identity yielded once a login sequence
// reaches Authenticated. Sessions themselves belong to the identity
// provider; the core only hands this view to the caller.
type Principal struct {
	AccountID string    `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// BiometricSample is an opaque capture blob. The core never inspects it.
type BiometricSample []byte

// LoginState names the position of a login attempt in the state machine.
type LoginState string

const (
	StateAwaitingBiometric LoginState = "awaiting_biometric"
	StateAwaitingCode      LoginState = "awaiting_code"
	StateAuthenticated     LoginState = "authenticated"
	StateRejected          LoginState = "rejected"
)

// LoginResult is returned by every step of the login flow. Handle is set
// while further factors are pending; Principal and SessionToken only when
// State is Authenticated; Reason whenever a step was refused (terminal on
// Rejected, recoverable on AwaitingCode with ReasonInvalidCode).
type LoginResult struct {
	State        LoginState `json:"state"`
	Handle       string     `json:"handle,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Principal    *Principal `json:"principal,omitempty"`
	SessionToken string     `json:"session_token,omitempty"`
}

// TOTPEnrollment is returned exactly once when a secret is generated. The
// secret is never retrievable again through any interface.
type TOTPEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}
