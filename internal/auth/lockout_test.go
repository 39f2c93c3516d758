package auth

import (
	"testing"
	"time"
)

func TestLockoutTripsAtThreshold(t *testing.T) {
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	tracker := newLockoutTracker(5, 10*time.Minute, func() time.Time { return now })

	for i := 0; i < 4; i++ {
		if tracker.Fail("acct") {
			t.Fatalf("locked after %d failures", i+1)
		}
	}
	if !tracker.Fail("acct") {
		t.Fatal("expected lock on 5th failure")
	}
	if !tracker.Locked("acct") {
		t.Fatal("expected Locked() after threshold")
	}
}

func TestLockoutWindowDecay(t *testing.T) {
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	tracker := newLockoutTracker(5, 10*time.Minute, func() time.Time { return now })

	for i := 0; i < 4; i++ {
		tracker.Fail("acct")
	}
	// Failures expire once the window passes; the next one starts fresh.
	now = now.Add(11 * time.Minute)
	if tracker.Fail("acct") {
		t.Fatal("stale failures should not count toward lockout")
	}
	if tracker.Locked("acct") {
		t.Fatal("account should not be locked after decay")
	}
}

func TestLockoutExpires(t *testing.T) {
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	tracker := newLockoutTracker(5, 10*time.Minute, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		tracker.Fail("acct")
	}
	if !tracker.Locked("acct") {
		t.Fatal("expected lock")
	}
	now = now.Add(10 * time.Minute)
	if tracker.Locked("acct") {
		t.Fatal("lock should expire after one window")
	}
}

func TestLockoutResetOnSuccess(t *testing.T) {
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	tracker := newLockoutTracker(5, 10*time.Minute, func() time.Time { return now })

	for i := 0; i < 4; i++ {
		tracker.Fail("acct")
	}
	tracker.Reset("acct")
	if tracker.Fail("acct") {
		t.Fatal("reset should clear the consecutive-failure count")
	}
}

func TestLockoutAccountsIndependent(t *testing.T) {
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	tracker := newLockoutTracker(5, 10*time.Minute, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		tracker.Fail("a")
	}
	if tracker.Locked("b") {
		t.Fatal("lockout must be scoped per account")
	}
}
