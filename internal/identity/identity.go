// Package identity is the local IdentityProvider: it owns password hashes
// and session tokens so the auth core never touches either. Accounts live
// in its own store; the core consumes them through the Directory view.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"securelogin/internal/auth"
)

const (
	issuer            = "securelogin"
	minPasswordLength = 8
)

var (
	ErrNotFound     = errors.New("identity: not found")
	ErrEmailTaken   = errors.New("identity: email already registered")
	ErrInvalidToken = errors.New("identity: invalid token")
)

// Record is one stored account with its credential material.
type Record struct {
	Account       auth.Account
	PasswordHash  string
	InvalidatedAt time.Time
}

// Store persists identity records.
type Store interface {
	Create(ctx context.Context, rec Record) error
	Find(ctx context.Context, accountID string) (Record, error)
	FindByEmail(ctx context.Context, email string) (Record, error)
	UpdateDisplayName(ctx context.Context, accountID, displayName string) error
	SetInvalidatedAt(ctx context.Context, accountID string, t time.Time) error
}

// Provider implements auth.IdentityProvider and auth.Directory with bcrypt
// password hashes and HS256 session tokens. Invalidation is a per-account
// watermark: tokens issued before it stop resolving.
type Provider struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithSessionTTL overrides the session token lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) Option {
	return func(p *Provider) {
		if fn != nil {
			p.now = fn
		}
	}
}

// New constructs a Provider signing sessions with the given secret.
func New(store Store, secret string, opts ...Option) (*Provider, error) {
	if store == nil {
		return nil, errors.New("identity: store is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("identity: session secret is required")
	}
	p := &Provider{
		store:  store,
		secret: []byte(secret),
		ttl:    12 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Register creates an account. Email collisions surface as ErrEmailTaken;
// everything else about the password stays behind the hash.
func (p *Provider) Register(ctx context.Context, email, password, displayName string) (auth.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return auth.Account{}, fmt.Errorf("%w: valid email is required", auth.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return auth.Account{}, fmt.Errorf("%w: password must be at least %d characters", auth.ErrInvalidInput, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return auth.Account{}, fmt.Errorf("hash password: %w", err)
	}

	rec := Record{
		Account: auth.Account{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: strings.TrimSpace(displayName),
			CreatedAt:   p.now().UTC(),
		},
		PasswordHash: string(hash),
	}
	if err := p.store.Create(ctx, rec); err != nil {
		return auth.Account{}, err
	}
	return rec.Account, nil
}

// VerifyPassword resolves email+password to an account id. Unknown email
// and wrong password are indistinguishable to the caller.
func (p *Provider) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", auth.ErrInvalidCredentials
	}
	rec, err := p.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", auth.ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return "", auth.ErrInvalidCredentials
	}
	return rec.Account.ID, nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// IssueSession signs a fresh HS256 session token for the account.
func (p *Provider) IssueSession(ctx context.Context, accountID string) (string, time.Time, error) {
	now := p.now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, now, nil
}

// CurrentAccount resolves a session token to an account id, honoring the
// invalidation watermark.
func (p *Provider) CurrentAccount(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" || claims.IssuedAt == nil {
		return "", ErrInvalidToken
	}

	rec, err := p.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if !rec.InvalidatedAt.IsZero() && !claims.IssuedAt.Time.After(rec.InvalidatedAt) {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// InvalidateSessions moves the account's watermark to now, cutting off
// every previously issued token.
func (p *Provider) InvalidateSessions(ctx context.Context, accountID string) error {
	return p.store.SetInvalidatedAt(ctx, accountID, p.now().UTC())
}

// Find implements auth.Directory.
func (p *Provider) Find(ctx context.Context, accountID string) (auth.Account, error) {
	rec, err := p.store.Find(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Account{}, auth.ErrNotFound
		}
		return auth.Account{}, err
	}
	return rec.Account, nil
}

// UpdateDisplayName implements auth.Directory. Display name is the only
// mutable account field.
func (p *Provider) UpdateDisplayName(ctx context.Context, accountID, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return fmt.Errorf("%w: display name is required", auth.ErrInvalidInput)
	}
	if err := p.store.UpdateDisplayName(ctx, accountID, displayName); err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}
