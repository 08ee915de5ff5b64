package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/passguard/passguard/pkg/audit"
	"github.com/passguard/passguard/pkg/crypto"
)

// lockState records consecutive authentication failures. It lives in a
// JSON file next to the database so lockout survives process restarts;
// everything else about the session does not.
type lockState struct {
	FailedAttempts int       `json:"failed_attempts"`
	LastAttempt    time.Time `json:"last_attempt"`
	LockedUntil    time.Time `json:"locked_until,omitempty"`
}

// Unlock verifies the master secret and, when no second factor is
// configured, transitions the session to UNLOCKED. With a second
// factor configured it returns AuthSecondFactorRequired and the caller
// must follow up with SecondFactor before any store operation is
// permitted.
//
// The bcrypt comparison runs even while locked out, so the response
// time does not reveal which check rejected the attempt. All rejected
// outcomes carry the same ErrAuthenticationFailed.
func (v *Vault) Unlock(masterSecret string) (AuthResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.Exists() {
		return AuthWrongSecret, ErrNotInitialized
	}

	if v.db == nil {
		db, err := openDB(filepath.Join(v.path, DBFileName))
		if err != nil {
			return AuthWrongSecret, err
		}
		v.db = db
	}

	var storedHash []byte
	if err := v.db.QueryRow(`SELECT secret_hash FROM master_credential WHERE id = 1`).Scan(&storedHash); err != nil {
		return AuthWrongSecret, fmt.Errorf("vault: failed to read master credential: %w", err)
	}

	state, err := v.loadLockState()
	if err != nil {
		return AuthWrongSecret, err
	}
	lockedOut := !state.LockedUntil.IsZero() && v.now().Before(state.LockedUntil)
	if !state.LockedUntil.IsZero() && !lockedOut {
		// Cooldown elapsed: the counter resets.
		state = &lockState{}
		if err := v.clearLockState(); err != nil {
			return AuthWrongSecret, err
		}
	}

	matched := bcrypt.CompareHashAndPassword(storedHash, []byte(masterSecret)) == nil

	if lockedOut {
		_ = v.audit.Log(audit.OpAuthFailed, audit.ResultDenied, "")
		return AuthLockedOut, ErrAuthenticationFailed
	}
	if !matched {
		if err := v.recordFailedAttempt(state); err != nil {
			return AuthWrongSecret, err
		}
		_ = v.audit.Log(audit.OpAuthFailed, audit.ResultDenied, "")
		return AuthWrongSecret, ErrAuthenticationFailed
	}

	if err := v.clearLockState(); err != nil {
		return AuthWrongSecret, err
	}

	// Already unlocked and the secret verified: nothing to re-derive.
	// A wrong secret never reaches this point, live session or not.
	if v.dek != nil && v.session.Phase() == PhaseUnlocked {
		return AuthSuccess, nil
	}

	salt, err := v.readSalt()
	if err != nil {
		return AuthWrongSecret, err
	}
	kek := crypto.DeriveKey([]byte(masterSecret), salt)
	defer crypto.SecureWipe(kek)

	dek, err := unwrapDEK(v.db, kek)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			// The hash matched but the wrapped key did not open: the
			// key blob is corrupt or was tampered with. Fatal.
			return AuthWrongSecret, fmt.Errorf("%w: wrapped key does not open", ErrKeyUnavailable)
		}
		return AuthWrongSecret, err
	}

	enabled, err := v.totpEnabled()
	if err != nil {
		crypto.SecureWipe(dek)
		return AuthWrongSecret, err
	}
	if enabled {
		v.pending = dek
		return AuthSecondFactorRequired, nil
	}

	v.completeUnlock(dek)
	return AuthSuccess, nil
}

// SecondFactor validates a TOTP code for a pending unlock. A failed
// code counts toward the same lockout policy as a wrong master secret,
// so an attacker holding the master secret cannot brute-force the
// second factor unthrottled. After a failure the challenge is
// discarded and authentication restarts from Unlock.
func (v *Vault) SecondFactor(code string) (AuthResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending == nil {
		return AuthSecondFactorFailed, ErrNoPendingSecondFactor
	}

	secret, err := v.totpSecretWith(v.pending)
	if err != nil {
		crypto.SecureWipe(v.pending)
		v.pending = nil
		return AuthSecondFactorFailed, err
	}
	ok := validateTOTP(secret, code, v.now())
	crypto.SecureWipe(secret)

	if !ok {
		crypto.SecureWipe(v.pending)
		v.pending = nil
		state, err := v.loadLockState()
		if err != nil {
			return AuthSecondFactorFailed, err
		}
		if err := v.recordFailedAttempt(state); err != nil {
			return AuthSecondFactorFailed, err
		}
		_ = v.audit.Log(audit.OpAuthFailed, audit.ResultDenied, "")
		return AuthSecondFactorFailed, ErrAuthenticationFailed
	}

	if err := v.clearLockState(); err != nil {
		return AuthSecondFactorFailed, err
	}
	dek := v.pending
	v.pending = nil
	v.completeUnlock(dek)
	return AuthSuccess, nil
}

// completeUnlock installs the key and flips the session machine.
// Caller holds v.mu.
func (v *Vault) completeUnlock(dek []byte) {
	v.dek = dek
	v.session.Unlock()
	if auditKey, err := v.readAuditKey(dek); err == nil {
		if err := v.audit.SetKey(auditKey); err == nil {
			_ = v.audit.Log(audit.OpVaultUnlock, audit.ResultSuccess, "")
		}
		crypto.SecureWipe(auditKey)
	}
}

// readAuditKey decrypts the stored audit HMAC key with the given DEK.
func (v *Vault) readAuditKey(dek []byte) ([]byte, error) {
	var enc []byte
	if err := v.db.QueryRow(`SELECT encrypted_key FROM audit_key WHERE id = 1`).Scan(&enc); err != nil {
		return nil, fmt.Errorf("vault: failed to read audit key: %w", err)
	}
	return crypto.Open(dek, enc)
}

// ChangeMasterSecret re-hashes the master secret and rotates the data
// encryption key in the same transaction: a compromised old secret can
// never be replayed against a key that remains valid. Requires an
// unlocked session and re-verification of the old secret; a wrong old
// secret counts toward the lockout policy.
func (v *Vault) ChangeMasterSecret(oldSecret, newSecret string) error {
	if err := v.requireUnlocked(); err != nil {
		return err
	}
	if err := validateMasterSecret(newSecret); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var storedHash []byte
	if err := v.db.QueryRow(`SELECT secret_hash FROM master_credential WHERE id = 1`).Scan(&storedHash); err != nil {
		return fmt.Errorf("vault: failed to read master credential: %w", err)
	}
	if bcrypt.CompareHashAndPassword(storedHash, []byte(oldSecret)) != nil {
		state, err := v.loadLockState()
		if err != nil {
			return err
		}
		if err := v.recordFailedAttempt(state); err != nil {
			return err
		}
		_ = v.audit.Log(audit.OpAuthFailed, audit.ResultDenied, "")
		return ErrAuthenticationFailed
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("vault: failed to hash master secret: %w", err)
	}

	salt, err := v.readSalt()
	if err != nil {
		return err
	}
	newKEK := crypto.DeriveKey([]byte(newSecret), salt)
	defer crypto.SecureWipe(newKEK)

	newDEK, err := crypto.NewKey()
	if err != nil {
		return err
	}

	if err := v.rotateTo(newKEK, newDEK, newHash); err != nil {
		crypto.SecureWipe(newDEK)
		return err
	}

	crypto.SecureWipe(v.dek)
	v.dek = newDEK
	// The audit key was re-encrypted under the new DEK by the rotation;
	// its value is unchanged, so the HMAC chain continues unbroken.
	_ = v.audit.Log(audit.OpMasterChange, audit.ResultSuccess, "")
	return nil
}

// recordFailedAttempt bumps the failure counter and, at the configured
// threshold, starts the lockout cooldown.
func (v *Vault) recordFailedAttempt(state *lockState) error {
	state.FailedAttempts++
	state.LastAttempt = v.now()
	if state.FailedAttempts >= v.cfg.MaxAttempts {
		state.LockedUntil = v.now().Add(v.cfg.LockoutCooldown())
	}
	return v.saveLockState(state)
}

// FailedAttempts returns the current consecutive-failure count for
// status display.
func (v *Vault) FailedAttempts() int {
	state, err := v.loadLockState()
	if err != nil {
		return 0
	}
	return state.FailedAttempts
}

func (v *Vault) loadLockState() (*lockState, error) {
	data, err := os.ReadFile(filepath.Join(v.path, LockStateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &lockState{}, nil
		}
		return nil, fmt.Errorf("vault: failed to read lock state: %w", err)
	}
	var state lockState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupted state file: start over rather than lock the user out.
		return &lockState{}, nil
	}
	return &state, nil
}

func (v *Vault) saveLockState(state *lockState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("vault: failed to marshal lock state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(v.path, LockStateFileName), data, FileMode); err != nil {
		return fmt.Errorf("vault: failed to write lock state: %w", err)
	}
	return nil
}

func (v *Vault) clearLockState() error {
	err := os.Remove(filepath.Join(v.path, LockStateFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault: failed to clear lock state: %w", err)
	}
	return nil
}
