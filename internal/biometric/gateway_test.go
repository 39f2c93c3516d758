package biometric

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"securelogin/internal/auth"
)

func TestAvailability(t *testing.T) {
	if New(false).Available() {
		t.Fatal("gateway should report unavailable")
	}
	if !New(true).Available() {
		t.Fatal("gateway should report available")
	}
}

func TestCaptureIsClientSide(t *testing.T) {
	ctx := context.Background()
	if _, err := New(false).Capture(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	// Even an available gateway has no server-side capture hardware.
	if _, err := New(true).Capture(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	g := New(true)
	ctx := context.Background()

	if err := g.Confirm(ctx, "acct-1", auth.BiometricSample("capture")); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := g.Confirm(ctx, "acct-1", nil); !errors.Is(err, ErrEmptySample) {
		t.Fatalf("expected ErrEmptySample, got %v", err)
	}

	huge := bytes.Repeat([]byte{0xAB}, maxSampleBytes+1)
	if err := g.Confirm(ctx, "acct-1", huge); err == nil {
		t.Fatal("oversized sample must be refused")
	}
}

func TestConfirmHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(true).Confirm(ctx, "acct-1", auth.BiometricSample("capture"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
