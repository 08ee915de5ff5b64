package vault

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/passguard/passguard/internal/config"
)

const testSecret = "correct horse battery"

func testConfig() *config.Config {
	return &config.Config{
		SessionTimeoutSeconds:  300,
		MaxAttempts:            3,
		LockoutCooldownSeconds: 60,
	}
}

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v := New(t.TempDir()+"/vault", testConfig())
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func newUnlockedVault(t *testing.T) *Vault {
	t.Helper()
	v := newTestVault(t)
	if err := v.Init(testSecret); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	res, err := v.Unlock(testSecret)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if res != AuthSuccess {
		t.Fatalf("Unlock() = %v, want AuthSuccess", res)
	}
	return v
}

func TestInitCreatesVault(t *testing.T) {
	v := newTestVault(t)

	if v.Exists() {
		t.Fatal("Exists() = true before Init")
	}
	if err := v.Init(testSecret); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !v.Exists() {
		t.Error("Exists() = false after Init")
	}
	if !v.IsLocked() {
		t.Error("vault unlocked after Init")
	}
}

func TestUnlockWhileUnlockedVerifiesSecret(t *testing.T) {
	v := newUnlockedVault(t)

	// A live session must not vouch for a wrong secret.
	if res, err := v.Unlock("definitely wrong"); !errors.Is(err, ErrAuthenticationFailed) || res != AuthWrongSecret {
		t.Errorf("Unlock(wrong) while unlocked = %v, %v; want AuthWrongSecret, ErrAuthenticationFailed", res, err)
	}
	if v.IsLocked() {
		t.Error("wrong re-unlock attempt locked the vault")
	}
	if got := v.FailedAttempts(); got != 1 {
		t.Errorf("FailedAttempts() = %d, want 1", got)
	}
	if res, err := v.Unlock(testSecret); err != nil || res != AuthSuccess {
		t.Errorf("Unlock(correct) while unlocked = %v, %v; want AuthSuccess", res, err)
	}
}

func TestConcurrentLockDuringStoreAccess(t *testing.T) {
	v := newUnlockedVault(t)
	mustAdd(t, v, "svc", "user", "pw")

	// Mirrors the shell's signal handler locking while a store
	// operation runs. Meaningful under the race detector.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 50 {
			_, _ = v.Unlock(testSecret)
			_, _ = v.Count()
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			v.Lock()
		}
	}()
	wg.Wait()
}

func TestInitRetriesAfterInterruptedInit(t *testing.T) {
	v := newTestVault(t)
	if err := v.Init(testSecret); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	// Simulate a crash between the database commit and the salt write:
	// the database is populated but the vault does not count as
	// initialized.
	if err := os.Remove(filepath.Join(v.Path(), SaltFileName)); err != nil {
		t.Fatalf("remove salt: %v", err)
	}
	if v.Exists() {
		t.Fatal("Exists() = true without the salt marker")
	}
	if _, err := v.Unlock(testSecret); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Unlock() error = %v, want ErrNotInitialized", err)
	}

	if err := v.Init(testSecret); err != nil {
		t.Fatalf("retried Init() error = %v", err)
	}
	if res, err := v.Unlock(testSecret); err != nil || res != AuthSuccess {
		t.Fatalf("Unlock() after retried Init = %v, %v", res, err)
	}
	if _, err := v.AddCredential("svc", "user", "pw"); err != nil {
		t.Errorf("AddCredential() after retried Init error = %v", err)
	}
}

func TestInitTwiceFails(t *testing.T) {
	v := newTestVault(t)
	if err := v.Init(testSecret); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := v.Init(testSecret); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init() error = %v, want ErrAlreadyInitialized", err)
	}
}

func TestInitRejectsShortSecret(t *testing.T) {
	v := newTestVault(t)
	if err := v.Init("short"); err == nil {
		t.Error("Init() accepted a secret below the minimum length")
	}
}

func TestUnlockBeforeInit(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Unlock(testSecret); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Unlock() error = %v, want ErrNotInitialized", err)
	}
}

func TestUnlockWrongSecret(t *testing.T) {
	v := newTestVault(t)
	if err := v.Init(testSecret); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	res, err := v.Unlock("wrong-secret-here")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Unlock() error = %v, want ErrAuthenticationFailed", err)
	}
	if res != AuthWrongSecret {
		t.Errorf("Unlock() = %v, want AuthWrongSecret", res)
	}
	if !v.IsLocked() {
		t.Error("vault unlocked after failed attempt")
	}
}

func TestLockoutAfterMaxAttempts(t *testing.T) {
	v := newTestVault(t)
	if err := v.Init(testSecret); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	for i := 0; i < v.cfg.MaxAttempts; i++ {
		res, err := v.Unlock("wrong-secret-here")
		if !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("attempt %d: error = %v, want ErrAuthenticationFailed", i+1, err)
		}
		if res != AuthWrongSecret {
			t.Fatalf("attempt %d: result = %v, want AuthWrongSecret", i+1, res)
		}
	}

	// The correct secret is refused while locked out, with the same
	// uniform error.
	res, err := v.Unlock(testSecret)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("locked-out Unlock() error = %v, want ErrAuthenticationFailed", err)
	}
	if res != AuthLockedOut {
		t.Errorf("locked-out Unlock() = %v, want AuthLockedOut", res)
	}
}

func TestLockoutCooldownExpires(t *testing.T) {
	v := newTestVault(t)
	if err := v.Init(testSecret); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	for i := 0; i < v.cfg.MaxAttempts; i++ {
		_, _ = v.Unlock("wrong-secret-here")
	}

	// Move the vault clock past the cooldown instead of sleeping.
	base := time.Now()
	v.now = func() time.Time { return base.Add(v.cfg.LockoutCooldown() + time.Second) }

	res, err := v.Unlock(testSecret)
	if err != nil {
		t.Fatalf("Unlock() after cooldown error = %v", err)
	}
	if res != AuthSuccess {
		t.Errorf("Unlock() after cooldown = %v, want AuthSuccess", res)
	}
	if v.FailedAttempts() != 0 {
		t.Errorf("FailedAttempts() = %d after successful unlock, want 0", v.FailedAttempts())
	}
}

func TestLockoutSurvivesRestart(t *testing.T) {
	dir := t.TempDir() + "/vault"
	v := New(dir, testConfig())
	if err := v.Init(testSecret); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	for i := 0; i < v.cfg.MaxAttempts; i++ {
		_, _ = v.Unlock("wrong-secret-here")
	}
	_ = v.Close()

	// A new handle sees the persisted lockout.
	v2 := New(dir, testConfig())
	defer v2.Close()
	res, err := v2.Unlock(testSecret)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Unlock() error = %v, want ErrAuthenticationFailed", err)
	}
	if res != AuthLockedOut {
		t.Errorf("Unlock() = %v, want AuthLockedOut", res)
	}
}

func TestSuccessfulUnlockResetsCounter(t *testing.T) {
	v := newTestVault(t)
	if err := v.Init(testSecret); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, _ = v.Unlock("wrong-secret-here")
	if v.FailedAttempts() != 1 {
		t.Fatalf("FailedAttempts() = %d, want 1", v.FailedAttempts())
	}
	if _, err := v.Unlock(testSecret); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if v.FailedAttempts() != 0 {
		t.Errorf("FailedAttempts() = %d after success, want 0", v.FailedAttempts())
	}
}

func TestLockWipesSession(t *testing.T) {
	v := newUnlockedVault(t)
	if v.IsLocked() {
		t.Fatal("vault locked after Unlock")
	}

	v.Lock()
	if !v.IsLocked() {
		t.Error("vault unlocked after Lock")
	}
	if _, err := v.AddCredential("svc", "user", "pw"); !errors.Is(err, ErrSessionLocked) && !errors.Is(err, ErrKeyUnavailable) {
		t.Errorf("AddCredential() on locked vault error = %v", err)
	}
}

func TestSessionIdleTimeout(t *testing.T) {
	v := newUnlockedVault(t)

	base := time.Now()
	v.session.now = func() time.Time { return base.Add(v.cfg.SessionTimeout() + time.Second) }

	if !v.IsLocked() {
		t.Error("session still unlocked past the idle timeout")
	}
	if _, err := v.AddCredential("svc", "user", "pw"); !errors.Is(err, ErrSessionLocked) {
		t.Errorf("AddCredential() error = %v, want ErrSessionLocked", err)
	}
}

func TestSessionActivityExtendsTimeout(t *testing.T) {
	v := newUnlockedVault(t)

	base := time.Now()
	elapsed := time.Duration(0)
	v.session.now = func() time.Time { return base.Add(elapsed) }

	// Touch the session just before each deadline.
	step := v.cfg.SessionTimeout() - time.Second
	for i := 0; i < 3; i++ {
		elapsed += step
		if _, err := v.Count(); err != nil {
			t.Fatalf("Count() at %v error = %v", elapsed, err)
		}
	}
}
