package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"securelogin/internal/ids"
	"securelogin/internal/obs"
)

const (
	defaultStoreTimeout     = 5 * time.Second
	defaultAttemptTTL       = 5 * time.Minute
	defaultLockoutThreshold = 5
	defaultLockoutWindow    = 10 * time.Minute
)

// Orchestrator drives the layered login flow: password, optional biometric
// capture, then a one-time code. It owns no durable state; everything it
// decides comes from one round of collaborator calls per step, so attempts
// by different accounts never interfere. The only cross-request state is
// the pending-attempt registry and the lockout counters, both in-process.
type Orchestrator struct {
	idp       IdentityProvider
	roles     RoleStore
	factors   FactorStore
	audit     AuditSink
	biometric BiometricGateway
	totp      *TOTPEngine

	now              func() time.Time
	timeout          time.Duration
	attemptTTL       time.Duration
	lockoutThreshold int
	lockoutWindow    time.Duration
	lockouts         *lockoutTracker

	mu       sync.Mutex
	attempts map[string]*loginAttempt
}

// loginAttempt is the server-held record of one in-flight login. The
// handle given to the client is only a lookup key; step position is never
// taken from the client.
type loginAttempt struct {
	accountID    string
	state        LoginState
	totpEnrolled bool
	createdAt    time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if fn != nil {
			o.now = fn
		}
	}
}

// WithStoreTimeout bounds every collaborator call.
func WithStoreTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithAttemptTTL bounds how long a pending attempt stays resumable.
func WithAttemptTTL(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.attemptTTL = d
		}
	}
}

// WithLockoutPolicy sets the failed-code threshold and decay window.
func WithLockoutPolicy(threshold int, window time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if threshold > 0 && window > 0 {
			o.lockoutThreshold = threshold
			o.lockoutWindow = window
		}
	}
}

// NewOrchestrator wires the login state machine to its collaborators.
func NewOrchestrator(idp IdentityProvider, roles RoleStore, factors FactorStore, audit AuditSink, biometric BiometricGateway, totp *TOTPEngine, opts ...OrchestratorOption) (*Orchestrator, error) {
	switch {
	case idp == nil:
		return nil, errors.New("auth: identity provider is required")
	case roles == nil:
		return nil, errors.New("auth: role store is required")
	case factors == nil:
		return nil, errors.New("auth: factor store is required")
	case audit == nil:
		return nil, errors.New("auth: audit sink is required")
	case totp == nil:
		return nil, errors.New("auth: totp engine is required")
	}
	o := &Orchestrator{
		idp:              idp,
		roles:            roles,
		factors:          factors,
		audit:            audit,
		biometric:        biometric,
		totp:             totp,
		now:              time.Now,
		timeout:          defaultStoreTimeout,
		attemptTTL:       defaultAttemptTTL,
		lockoutThreshold: defaultLockoutThreshold,
		lockoutWindow:    defaultLockoutWindow,
		attempts:         make(map[string]*loginAttempt),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.lockouts = newLockoutTracker(o.lockoutThreshold, o.lockoutWindow, o.now)
	return o, nil
}

// BeginLogin runs the credential step. On password success it loads the
// role assignment: a missing row rejects with NoRoleAssigned and the
// freshly established identity session is invalidated on the spot; a
// non-active status rejects with AccountDisabled before any factor prompt.
// Otherwise the enrolled factors decide the next state.
func (o *Orchestrator) BeginLogin(ctx context.Context, email, password string) (LoginResult, error) {
	accountID, err := o.verifyPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// No audit write before identity is established.
			return o.reject(ReasonInvalidCredentials), nil
		}
		return o.reject(ReasonTransientError), nil
	}

	assignment, err := o.loadAssignment(ctx, accountID)
	switch {
	case errors.Is(err, ErrNotFound):
		o.invalidateSessions(ctx, accountID)
		return o.reject(ReasonNoRoleAssigned), nil
	case err != nil:
		return o.reject(ReasonTransientError), nil
	}
	if assignment.Status != StatusActive {
		return o.reject(ReasonAccountDisabled), nil
	}

	record, err := o.loadFactors(ctx, accountID)
	if err != nil {
		return o.reject(ReasonTransientError), nil
	}

	if record.BiometricEnrolled && o.biometric != nil && o.biometric.Available() {
		return o.stash(accountID, StateAwaitingBiometric, record.TOTPEnrolled), nil
	}
	if record.TOTPEnrolled {
		return o.stash(accountID, StateAwaitingCode, true), nil
	}
	return o.authenticate(ctx, accountID)
}

// ContinueBiometric consumes the biometric step. Capture success, capture
// failure and an explicit skip all land in the same place: the code step
// when TOTP is enrolled, Authenticated otherwise. Skipping can therefore
// never bypass an enrolled code factor.
func (o *Orchestrator) ContinueBiometric(ctx context.Context, handle string, sample BiometricSample, skip bool) (LoginResult, error) {
	attempt, err := o.take(handle, StateAwaitingBiometric)
	if err != nil {
		return LoginResult{}, err
	}

	if !skip && len(sample) > 0 && o.biometric != nil {
		cctx, cancel := context.WithTimeout(ctx, o.timeout)
		confirmErr := o.biometric.Confirm(cctx, attempt.accountID, sample)
		cancel()
		if confirmErr != nil {
			obs.LogEvent("biometric_capture_failed", map[string]any{
				"account_id": attempt.accountID,
				"error":      confirmErr.Error(),
			})
		}
	}

	if attempt.totpEnrolled {
		return o.stash(attempt.accountID, StateAwaitingCode, true), nil
	}
	return o.authenticate(ctx, attempt.accountID)
}

// ContinueCode verifies the one-time code. A mismatch keeps the attempt in
// AwaitingCode and counts toward lockout; the attempt that trips the
// threshold — and every attempt while the lock holds — rejects with
// LockedOut regardless of the submitted code.
func (o *Orchestrator) ContinueCode(ctx context.Context, handle, code string) (LoginResult, error) {
	attempt, err := o.peek(handle, StateAwaitingCode)
	if err != nil {
		return LoginResult{}, err
	}

	// The handle stays resolvable while the lock holds so repeated
	// submissions keep getting LockedOut instead of an unknown-attempt
	// error; the TTL sweeps it eventually.
	if o.lockouts.Locked(attempt.accountID) {
		return o.reject(ReasonLockedOut), nil
	}

	record, err := o.loadFactors(ctx, attempt.accountID)
	if err != nil {
		return o.reject(ReasonTransientError), nil
	}

	ok, verr := o.totp.Verify(record.TOTPSecret, code, o.now())
	if verr != nil {
		obs.LogEvent("totp_record_error", map[string]any{
			"account_id": attempt.accountID,
			"error":      verr.Error(),
		})
		return o.reject(ReasonTransientError), nil
	}
	if !ok {
		obs.CodeVerifications.WithLabelValues("mismatch").Inc()
		if o.lockouts.Fail(attempt.accountID) {
			obs.Lockouts.Inc()
			o.appendAudit(ctx, attempt.accountID, "login_lockout", "too many failed codes")
			return o.reject(ReasonLockedOut), nil
		}
		return LoginResult{State: StateAwaitingCode, Handle: handle, Reason: ReasonInvalidCode}, nil
	}

	obs.CodeVerifications.WithLabelValues("match").Inc()
	o.lockouts.Reset(attempt.accountID)
	o.drop(handle)

	// First successful verification proves possession and completes a
	// pending enrollment.
	if !record.TOTPEnrolled && record.TOTPSecret != "" {
		record.TOTPEnrolled = true
		record.UpdatedAt = o.now().UTC()
		if err := o.putFactors(ctx, record); err != nil {
			return o.reject(ReasonTransientError), nil
		}
	}
	return o.authenticate(ctx, attempt.accountID)
}

// Signup registers an account with the identity provider and creates the
// default {user, active} assignment so the account can actually log in.
func (o *Orchestrator) Signup(ctx context.Context, email, password, displayName string) (Account, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	account, err := o.idp.Register(cctx, email, password, displayName)
	cancel()
	if err != nil {
		return Account{}, err
	}

	assignment := DefaultAssignment(account.ID)
	assignment.CreatedAt = o.now().UTC()
	assignment.UpdatedAt = assignment.CreatedAt
	cctx, cancel = context.WithTimeout(ctx, o.timeout)
	err = o.roles.Upsert(cctx, assignment)
	cancel()
	if err != nil {
		return Account{}, fmt.Errorf("%w: create assignment: %v", ErrTransient, err)
	}

	o.appendAudit(ctx, account.ID, "account_created", "signup")
	return account, nil
}

// EnrollTOTP generates a fresh secret for the account and stores it with
// totp_enrolled=false; re-enrollment replaces the prior secret entirely.
// The secret and provisioning URI are returned this one time only — the
// record becomes active when the caller proves possession with a code.
func (o *Orchestrator) EnrollTOTP(ctx context.Context, accountID, accountLabel string) (TOTPEnrollment, error) {
	enrollment, err := o.totp.GenerateSecret(accountLabel)
	if err != nil {
		return TOTPEnrollment{}, err
	}

	record, err := o.loadFactors(ctx, accountID)
	if err != nil {
		return TOTPEnrollment{}, err
	}
	record.AccountID = accountID
	record.TOTPSecret = enrollment.Secret
	record.TOTPEnrolled = false
	record.UpdatedAt = o.now().UTC()
	if err := o.putFactors(ctx, record); err != nil {
		return TOTPEnrollment{}, err
	}
	return enrollment, nil
}

// ActivateTOTP proves possession during the signup flow, outside a login
// attempt. Failed activations count toward the same lockout as login
// codes.
func (o *Orchestrator) ActivateTOTP(ctx context.Context, accountID, code string) error {
	if o.lockouts.Locked(accountID) {
		return ErrLockedOut
	}
	record, err := o.loadFactors(ctx, accountID)
	if err != nil {
		return err
	}
	ok, err := o.totp.Verify(record.TOTPSecret, code, o.now())
	if err != nil {
		return err
	}
	if !ok {
		if o.lockouts.Fail(accountID) {
			obs.Lockouts.Inc()
			return ErrLockedOut
		}
		return ErrInvalidCode
	}
	o.lockouts.Reset(accountID)
	if !record.TOTPEnrolled {
		record.TOTPEnrolled = true
		record.UpdatedAt = o.now().UTC()
		if err := o.putFactors(ctx, record); err != nil {
			return err
		}
	}
	o.appendAudit(ctx, accountID, "factor_verified", "totp enrollment confirmed")
	return nil
}

// EnrollBiometric stores the capture as the account's template. Capture
// success is the whole proof for this factor; it carries the weaker
// guarantee the design notes flag.
func (o *Orchestrator) EnrollBiometric(ctx context.Context, accountID string, sample BiometricSample) error {
	if len(sample) == 0 {
		return fmt.Errorf("%w: empty sample", ErrInvalidInput)
	}
	if o.biometric != nil {
		cctx, cancel := context.WithTimeout(ctx, o.timeout)
		err := o.biometric.Confirm(cctx, accountID, sample)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: capture not confirmed", ErrInvalidInput)
		}
	}

	record, err := o.loadFactors(ctx, accountID)
	if err != nil {
		return err
	}
	record.AccountID = accountID
	record.BiometricTemplate = append([]byte(nil), sample...)
	record.BiometricEnrolled = true
	record.UpdatedAt = o.now().UTC()
	if err := o.putFactors(ctx, record); err != nil {
		return err
	}
	o.appendAudit(ctx, accountID, "factor_verified", "biometric enrolled")
	return nil
}

// Factors returns which factors the account has enrolled. Secrets and
// templates never leave the store through this path.
func (o *Orchestrator) Factors(ctx context.Context, accountID string) (FactorSummary, error) {
	record, err := o.loadFactors(ctx, accountID)
	if err != nil {
		return FactorSummary{}, err
	}
	return FactorSummary{
		TOTPEnrolled:      record.TOTPEnrolled,
		BiometricEnrolled: record.BiometricEnrolled,
	}, nil
}

// --- internals ---

// authenticate is the single path to a usable principal. It writes exactly
// one login_success entry; an audit failure is logged and never blocks the
// decision.
func (o *Orchestrator) authenticate(ctx context.Context, accountID string) (LoginResult, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	token, issuedAt, err := o.idp.IssueSession(cctx, accountID)
	cancel()
	if err != nil {
		return o.reject(ReasonTransientError), nil
	}

	o.appendAudit(ctx, accountID, "login_success", "authenticated")
	obs.LoginOutcomes.WithLabelValues("authenticated").Inc()

	return LoginResult{
		State:        StateAuthenticated,
		Principal:    &Principal{AccountID: accountID, IssuedAt: issuedAt},
		SessionToken: token,
	}, nil
}

func (o *Orchestrator) reject(reason string) LoginResult {
	obs.LoginOutcomes.WithLabelValues(reason).Inc()
	return LoginResult{State: StateRejected, Reason: reason}
}

// stash records a pending attempt and hands back its handle.
func (o *Orchestrator) stash(accountID string, state LoginState, totpEnrolled bool) LoginResult {
	handle := ids.New()
	o.mu.Lock()
	o.sweepLocked()
	o.attempts[handle] = &loginAttempt{
		accountID:    accountID,
		state:        state,
		totpEnrolled: totpEnrolled,
		createdAt:    o.now(),
	}
	o.mu.Unlock()
	return LoginResult{State: state, Handle: handle}
}

// take removes and returns the attempt iff it is in the wanted state.
func (o *Orchestrator) take(handle string, want LoginState) (*loginAttempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	attempt := o.attempts[handle]
	if attempt == nil || attempt.state != want || o.expiredLocked(attempt) {
		delete(o.attempts, handle)
		return nil, ErrUnknownAttempt
	}
	delete(o.attempts, handle)
	return attempt, nil
}

// peek returns the attempt without consuming it; the code step may be
// retried in place.
func (o *Orchestrator) peek(handle string, want LoginState) (*loginAttempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	attempt := o.attempts[handle]
	if attempt == nil || attempt.state != want || o.expiredLocked(attempt) {
		delete(o.attempts, handle)
		return nil, ErrUnknownAttempt
	}
	return attempt, nil
}

func (o *Orchestrator) drop(handle string) {
	o.mu.Lock()
	delete(o.attempts, handle)
	o.mu.Unlock()
}

func (o *Orchestrator) expiredLocked(attempt *loginAttempt) bool {
	return o.now().Sub(attempt.createdAt) > o.attemptTTL
}

func (o *Orchestrator) sweepLocked() {
	for handle, attempt := range o.attempts {
		if o.expiredLocked(attempt) {
			delete(o.attempts, handle)
		}
	}
}

func (o *Orchestrator) verifyPassword(ctx context.Context, email, password string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.idp.VerifyPassword(cctx, email, password)
}

func (o *Orchestrator) invalidateSessions(ctx context.Context, accountID string) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := o.idp.InvalidateSessions(cctx, accountID); err != nil {
		obs.LogEvent("session_invalidate_error", map[string]any{
			"account_id": accountID,
			"error":      err.Error(),
		})
	}
}

func (o *Orchestrator) loadAssignment(ctx context.Context, accountID string) (RoleAssignment, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	assignment, err := o.roles.Get(cctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RoleAssignment{}, err
		}
		return RoleAssignment{}, fmt.Errorf("%w: load assignment: %v", ErrTransient, err)
	}
	return assignment, nil
}

// loadFactors treats a missing record as an empty one: no factors
// enrolled.
func (o *Orchestrator) loadFactors(ctx context.Context, accountID string) (FactorRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	record, err := o.factors.Get(cctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FactorRecord{AccountID: accountID}, nil
		}
		return FactorRecord{}, fmt.Errorf("%w: load factors: %v", ErrTransient, err)
	}
	return record, nil
}

func (o *Orchestrator) putFactors(ctx context.Context, record FactorRecord) error {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := o.factors.Put(cctx, record); err != nil {
		return fmt.Errorf("%w: store factors: %v", ErrTransient, err)
	}
	return nil
}

func (o *Orchestrator) appendAudit(ctx context.Context, accountID, action, detail string) {
	entry := AuditEntry{
		ID:        ids.New(),
		AccountID: accountID,
		Action:    action,
		Detail:    detail,
		CreatedAt: o.now().UTC(),
	}
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := o.audit.Append(cctx, entry); err != nil {
		obs.LogEvent("audit_error", map[string]any{
			"account_id": accountID,
			"action":     action,
			"error":      err.Error(),
		})
	}
}
