package auth

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretBytes = 20 // 160 bits, RFC 4226 recommended minimum
	totpPeriod      = 30
	totpSkew        = 1
)

var b32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPEngine generates shared secrets and validates one-time codes against
// the current time window. It holds no per-account state; the secret comes
// in with every call.
type TOTPEngine struct {
	issuer string
	digits otp.Digits
	now    func() time.Time
}

// TOTPOption configures a TOTPEngine.
type TOTPOption func(*TOTPEngine)

// WithTOTPDigits overrides the code length (6 by default).
func WithTOTPDigits(n int) TOTPOption {
	return func(e *TOTPEngine) {
		if n == 6 || n == 8 {
			e.digits = otp.Digits(n)
		}
	}
}

// WithTOTPClock overrides the time source (tests).
func WithTOTPClock(fn func() time.Time) TOTPOption {
	return func(e *TOTPEngine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewTOTPEngine constructs an engine that labels provisioning URIs with the
// given issuer.
func NewTOTPEngine(issuer string, opts ...TOTPOption) *TOTPEngine {
	e := &TOTPEngine{
		issuer: issuer,
		digits: otp.DigitsSix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateSecret returns a fresh 160-bit secret in base32 together with the
// otpauth provisioning URI for the given account label. The pair is shown
// to the caller exactly once.
func (e *TOTPEngine) GenerateSecret(accountLabel string) (TOTPEnrollment, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return TOTPEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	secret := b32NoPad.EncodeToString(raw)
	return TOTPEnrollment{
		Secret:          secret,
		ProvisioningURI: e.provisioningURI(accountLabel, secret),
	}, nil
}

// provisioningURI builds otpauth://totp/<issuer>:<label>?secret=..&issuer=..
// in the exact shape standard authenticator apps parse.
func (e *TOTPEngine) provisioningURI(accountLabel, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		url.PathEscape(e.issuer),
		url.PathEscape(accountLabel),
		secret,
		url.QueryEscape(e.issuer),
	)
}

// Verify checks a submitted code against the secret for the window around
// now, accepting one step of clock skew on either side. Malformed input is
// rejected before the secret is consulted; the underlying comparison is
// constant-time. A wrong code is (false, nil) — only a missing secret is
// an error.
func (e *TOTPEngine) Verify(secret, code string, now time.Time) (bool, error) {
	if secret == "" {
		return false, ErrNoSecret
	}
	if !e.wellFormed(code) {
		return false, nil
	}
	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    e.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		// Undecodable secrets are an unrecoverable record problem, not a
		// wrong code.
		return false, fmt.Errorf("%w: %v", ErrNoSecret, err)
	}
	return ok, nil
}

// CodeAt computes the code for an arbitrary instant. Test helper and
// enrollment preview only; login verification goes through Verify.
func (e *TOTPEngine) CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    e.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// Digits returns the configured code length.
func (e *TOTPEngine) Digits() int { return int(e.digits) }

func (e *TOTPEngine) wellFormed(code string) bool {
	if len(code) != int(e.digits) {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
