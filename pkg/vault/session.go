package vault

import (
	"sync"
	"time"
)

// SessionPhase is the state of the session machine.
type SessionPhase int

const (
	// PhaseLocked is the initial phase and the terminal phase on shutdown.
	PhaseLocked SessionPhase = iota
	// PhaseUnlocked permits credential store operations.
	PhaseUnlocked
)

// SessionGuard is the session state machine: LOCKED -> UNLOCKED on
// successful authentication, UNLOCKED -> LOCKED on explicit lock, idle
// timeout or process termination. It is held by the Vault and never
// persisted; every process starts LOCKED.
//
// Timeout detection is an on-access check: RequireUnlocked evaluates
// the idle time as of the moment of the call, so an expired session is
// refused even if no background timer ever fired.
type SessionGuard struct {
	mu           sync.Mutex
	phase        SessionPhase
	lastActivity time.Time
	timeout      time.Duration
	now          func() time.Time
}

// NewSessionGuard creates a guard in the LOCKED phase.
func NewSessionGuard(timeout time.Duration) *SessionGuard {
	return &SessionGuard{
		phase:   PhaseLocked,
		timeout: timeout,
		now:     time.Now,
	}
}

// Unlock transitions to UNLOCKED and starts the activity clock. Only
// MasterAuth calls this, after all configured factors have passed.
func (g *SessionGuard) Unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = PhaseUnlocked
	g.lastActivity = g.now()
}

// Lock transitions to LOCKED unconditionally.
func (g *SessionGuard) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = PhaseLocked
}

// RequireUnlocked fails with ErrSessionLocked unless the session is
// UNLOCKED and has not idled past the timeout. An expired session is
// locked as a side effect. On success the activity clock is touched,
// keeping the session alive.
func (g *SessionGuard) RequireUnlocked() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseUnlocked {
		return ErrSessionLocked
	}
	if g.now().Sub(g.lastActivity) > g.timeout {
		g.phase = PhaseLocked
		return ErrSessionLocked
	}
	g.lastActivity = g.now()
	return nil
}

// Phase returns the current phase, applying the timeout check first so
// a stale UNLOCKED is never reported.
func (g *SessionGuard) Phase() SessionPhase {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseUnlocked && g.now().Sub(g.lastActivity) > g.timeout {
		g.phase = PhaseLocked
	}
	return g.phase
}

// Remaining returns the time left before the session would lock, or
// zero when locked.
func (g *SessionGuard) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseUnlocked {
		return 0
	}
	remaining := g.timeout - g.now().Sub(g.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}
