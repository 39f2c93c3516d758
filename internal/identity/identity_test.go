package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"securelogin/internal/auth"
)

func newTestProvider(t *testing.T, clock *time.Time) *Provider {
	t.Helper()
	p, err := New(NewMemStore(), "test-session-secret",
		WithClock(func() time.Time { return *clock }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestRegisterAndVerify(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Second)
	p := newTestProvider(t, &clock)
	ctx := context.Background()

	account, err := p.Register(ctx, "  Casey@Example.com ", "hunter2hunter2", " Casey ")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.Email != "casey@example.com" || account.DisplayName != "Casey" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.ID == "" {
		t.Fatal("account id must be set")
	}

	id, err := p.VerifyPassword(ctx, "casey@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if id != account.ID {
		t.Fatalf("id = %s, want %s", id, account.ID)
	}
}

func TestVerifyPasswordFailuresAreUniform(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Second)
	p := newTestProvider(t, &clock)
	ctx := context.Background()

	if _, err := p.Register(ctx, "casey@example.com", "hunter2hunter2", "Casey"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Wrong password and unknown email must be indistinguishable.
	_, wrongPw := p.VerifyPassword(ctx, "casey@example.com", "wrong-password")
	_, unknown := p.VerifyPassword(ctx, "nobody@example.com", "hunter2hunter2")
	if !errors.Is(wrongPw, auth.ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", wrongPw)
	}
	if !errors.Is(unknown, auth.ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", unknown)
	}
}

func TestRegisterValidation(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Second)
	p := newTestProvider(t, &clock)
	ctx := context.Background()

	if _, err := p.Register(ctx, "not-an-email", "hunter2hunter2", ""); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("bad email: %v", err)
	}
	if _, err := p.Register(ctx, "casey@example.com", "short", ""); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("short password: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Second)
	p := newTestProvider(t, &clock)
	ctx := context.Background()

	if _, err := p.Register(ctx, "casey@example.com", "hunter2hunter2", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := p.Register(ctx, "CASEY@example.com", "otherpassword", "")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Second)
	p := newTestProvider(t, &clock)
	ctx := context.Background()

	account, err := p.Register(ctx, "casey@example.com", "hunter2hunter2", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, issuedAt, err := p.IssueSession(ctx, account.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if !issuedAt.Equal(clock) {
		t.Fatalf("issuedAt = %v, want %v", issuedAt, clock)
	}

	id, err := p.CurrentAccount(ctx, token)
	if err != nil {
		t.Fatalf("CurrentAccount: %v", err)
	}
	if id != account.ID {
		t.Fatalf("id = %s, want %s", id, account.ID)
	}
}

func TestCurrentAccountRejectsGarbage(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Second)
	p := newTestProvider(t, &clock)
	ctx := context.Background()

	for _, token := range []string{"", "   ", "not.a.jwt", "eyJhbGciOiJub25lIn0.e30."} {
		if _, err := p.CurrentAccount(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestCurrentAccountRejectsForeignSignature(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Second)
	p := newTestProvider(t, &clock)
	other, err := New(NewMemStore(), "a-different-secret",
		WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	account, err := p.Register(ctx, "casey@example.com", "hunter2hunter2", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, _, err := other.IssueSession(ctx, account.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := p.CurrentAccount(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	// Issue from a clock far enough in the past that the 12h lifetime has
	// already run out; expiry is checked against wall-clock time at parse.
	clock := time.Now().UTC().Add(-13 * time.Hour).Truncate(time.Second)
	p := newTestProvider(t, &clock)
	ctx := context.Background()

	account, err := p.Register(ctx, "casey@example.com", "hunter2hunter2", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, _, err := p.IssueSession(ctx, account.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	if _, err := p.CurrentAccount(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestInvalidationWatermark(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Second)
	p := newTestProvider(t, &clock)
	ctx := context.Background()

	account, err := p.Register(ctx, "casey@example.com", "hunter2hunter2", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	oldToken, _, err := p.IssueSession(ctx, account.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	clock = clock.Add(time.Minute)
	if err := p.InvalidateSessions(ctx, account.ID); err != nil {
		t.Fatalf("InvalidateSessions: %v", err)
	}
	if _, err := p.CurrentAccount(ctx, oldToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old token must be cut off, got %v", err)
	}

	// A token minted after the watermark resolves again.
	clock = clock.Add(time.Minute)
	newToken, _, err := p.IssueSession(ctx, account.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	id, err := p.CurrentAccount(ctx, newToken)
	if err != nil {
		t.Fatalf("CurrentAccount: %v", err)
	}
	if id != account.ID {
		t.Fatalf("id = %s, want %s", id, account.ID)
	}
}

func TestDirectory(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Second)
	p := newTestProvider(t, &clock)
	ctx := context.Background()

	account, err := p.Register(ctx, "casey@example.com", "hunter2hunter2", "Casey")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := p.UpdateDisplayName(ctx, account.ID, "  C. Lane "); err != nil {
		t.Fatalf("UpdateDisplayName: %v", err)
	}
	got, err := p.Find(ctx, account.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.DisplayName != "C. Lane" {
		t.Fatalf("display name = %q", got.DisplayName)
	}

	if err := p.UpdateDisplayName(ctx, account.ID, "   "); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("blank name: %v", err)
	}
	if _, err := p.Find(ctx, "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("missing account: %v", err)
	}
}
