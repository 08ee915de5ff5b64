package vault

import (
	"errors"
	"testing"
	"time"
)

func TestSessionGuardTimeoutBoundary(t *testing.T) {
	g := NewSessionGuard(30 * time.Second)
	base := time.Now()
	elapsed := time.Duration(0)
	g.now = func() time.Time { return base.Add(elapsed) }

	g.Unlock()

	// One second under the deadline is still inside the session.
	elapsed = 29 * time.Second
	if err := g.RequireUnlocked(); err != nil {
		t.Errorf("RequireUnlocked() at 29s error = %v", err)
	}

	// The successful access reset the clock; one second past a fresh
	// deadline locks.
	elapsed += 31 * time.Second
	if err := g.RequireUnlocked(); !errors.Is(err, ErrSessionLocked) {
		t.Errorf("RequireUnlocked() at +31s error = %v, want ErrSessionLocked", err)
	}

	// The expiry is sticky: the guard stays locked afterwards.
	elapsed += time.Second
	if g.Phase() != PhaseLocked {
		t.Error("Phase() != PhaseLocked after expiry")
	}
}

func TestSessionGuardStartsLocked(t *testing.T) {
	g := NewSessionGuard(30 * time.Second)
	if g.Phase() != PhaseLocked {
		t.Error("new guard is not locked")
	}
	if err := g.RequireUnlocked(); !errors.Is(err, ErrSessionLocked) {
		t.Errorf("RequireUnlocked() error = %v, want ErrSessionLocked", err)
	}
	if g.Remaining() != 0 {
		t.Errorf("Remaining() = %v on locked guard, want 0", g.Remaining())
	}
}

func TestSessionGuardExplicitLock(t *testing.T) {
	g := NewSessionGuard(30 * time.Second)
	g.Unlock()
	if g.Phase() != PhaseUnlocked {
		t.Fatal("guard not unlocked")
	}
	g.Lock()
	if g.Phase() != PhaseLocked {
		t.Error("guard not locked after Lock()")
	}
}

func TestSessionGuardRemaining(t *testing.T) {
	g := NewSessionGuard(30 * time.Second)
	base := time.Now()
	elapsed := time.Duration(0)
	g.now = func() time.Time { return base.Add(elapsed) }

	g.Unlock()
	if got := g.Remaining(); got != 30*time.Second {
		t.Errorf("Remaining() = %v, want 30s", got)
	}
	elapsed = 10 * time.Second
	if got := g.Remaining(); got != 20*time.Second {
		t.Errorf("Remaining() = %v, want 20s", got)
	}
}
