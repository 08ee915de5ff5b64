// Package vault implements the passguard vault security core: the
// master-authentication gate with lockout, the encryption key
// lifecycle, the locked/unlocked session state machine and the
// encrypted credential store.
//
// Layout of a vault directory (0700):
//
//	vault.salt  KDF salt, generated once (0600, written atomically)
//	vault.db    SQLite database: master hash, wrapped key, TOTP
//	            secret, credentials (0600)
//	vault.lock  JSON lockout state for failed attempts (0600)
//	config.yaml tunables (session timeout, lockout policy)
//	audit.log   HMAC-chained operation log
package vault

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/passguard/passguard/internal/config"
	"github.com/passguard/passguard/pkg/audit"
	"github.com/passguard/passguard/pkg/crypto"
)

// File names and permissions inside the vault directory.
const (
	SaltFileName      = "vault.salt"
	DBFileName        = "vault.db"
	LockStateFileName = "vault.lock"
	AuditFileName     = "audit.log"
	FileMode          = 0600
	DirMode           = 0700
)

// Master secret length bounds.
const (
	MinSecretLength = 8
	MaxSecretLength = 128
)

// Vault owns the security core state: the database handle, the
// decrypted data encryption key (only while unlocked) and the session
// guard. All mutating state transitions go through its methods.
type Vault struct {
	path    string
	cfg     *config.Config
	audit   *audit.Logger
	session *SessionGuard
	now     func() time.Time

	mu      sync.Mutex
	db      *sql.DB
	dek     []byte // nil while locked
	pending []byte // DEK held between master verify and second factor
}

// New creates a vault handle for the given directory. The vault starts
// LOCKED; no files are touched until Init or Unlock.
func New(path string, cfg *config.Config) *Vault {
	return &Vault{
		path:    path,
		cfg:     cfg,
		audit:   audit.NewLogger(filepath.Join(path, AuditFileName)),
		session: NewSessionGuard(cfg.SessionTimeout()),
		now:     time.Now,
	}
}

// Path returns the vault directory.
func (v *Vault) Path() string {
	return v.path
}

// Exists reports whether a vault has been initialized at the path.
func (v *Vault) Exists() bool {
	_, err := os.Stat(filepath.Join(v.path, SaltFileName))
	return err == nil
}

// Init creates a new vault: generates the KDF salt and the data
// encryption key, hashes the master secret with bcrypt and persists
// everything. The salt is written via a temp file and atomic rename so
// a failed init never leaves a partially written key file behind.
func (v *Vault) Init(masterSecret string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.Exists() {
		return ErrAlreadyInitialized
	}
	if err := validateMasterSecret(masterSecret); err != nil {
		return err
	}

	if err := os.MkdirAll(v.path, DirMode); err != nil {
		return fmt.Errorf("vault: failed to create vault directory: %w", err)
	}

	// Without the salt marker any database or log here is debris from
	// an interrupted init. Clear it so init is retryable.
	for _, name := range []string{
		DBFileName, DBFileName + "-wal", DBFileName + "-shm",
		AuditFileName, LockStateFileName,
	} {
		if err := os.Remove(filepath.Join(v.path, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("vault: failed to remove stale vault file: %w", err)
		}
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(masterSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("vault: failed to hash master secret: %w", err)
	}

	kek := crypto.DeriveKey([]byte(masterSecret), salt)
	defer crypto.SecureWipe(kek)

	dek, err := crypto.NewKey()
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(dek)

	// The audit key is independent of the DEK so the HMAC chain stays
	// verifiable across master secret changes. It is stored encrypted
	// under the DEK and re-encrypted on rotation like the TOTP secret.
	auditKey, err := crypto.NewKey()
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(auditKey)

	db, err := openDB(filepath.Join(v.path, DBFileName))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := createTables(db); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("vault: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(v.now())
	if _, err := tx.Exec(
		`INSERT INTO master_credential (id, secret_hash, updated_at) VALUES (1, ?, ?)`,
		hash, now,
	); err != nil {
		return fmt.Errorf("vault: failed to store master credential: %w", err)
	}
	if err := wrapDEK(tx, kek, dek, now); err != nil {
		return err
	}
	encAuditKey, err := crypto.Seal(dek, auditKey)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO audit_key (id, encrypted_key, created_at) VALUES (1, ?, ?)`,
		encAuditKey, now,
	); err != nil {
		return fmt.Errorf("vault: failed to store audit key: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vault: failed to commit transaction: %w", err)
	}

	// Salt last: its presence marks the vault as initialized. A crash
	// before this point leaves only debris that the next Init clears.
	if err := writeFileAtomic(filepath.Join(v.path, SaltFileName), salt, FileMode); err != nil {
		return err
	}

	if err := os.Chmod(filepath.Join(v.path, DBFileName), FileMode); err != nil {
		return fmt.Errorf("vault: failed to set database permissions: %w", err)
	}

	if err := v.audit.SetKey(auditKey); err == nil {
		_ = v.audit.Log(audit.OpVaultInit, audit.ResultSuccess, "")
	}
	// Init does not unlock; the key must not outlive it.
	v.audit.ClearKey()

	return nil
}

// Lock wipes the key material and locks the session. Safe to call in
// any state, including from a signal handler on shutdown: after Lock
// returns no decrypted material is reachable.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockLocked()
}

// lockLocked is Lock with v.mu already held.
func (v *Vault) lockLocked() {
	if v.dek != nil {
		_ = v.audit.Log(audit.OpVaultLock, audit.ResultSuccess, "")
		crypto.SecureWipe(v.dek)
		v.dek = nil
	}
	if v.pending != nil {
		crypto.SecureWipe(v.pending)
		v.pending = nil
	}
	v.session.Lock()
	v.audit.ClearKey()
	if v.db != nil {
		v.db.Close()
		v.db = nil
	}
}

// IsLocked reports whether the session is locked, evaluating the idle
// timeout as of the call.
func (v *Vault) IsLocked() bool {
	return v.session.Phase() != PhaseUnlocked
}

// SessionRemaining returns the time left before the session auto-locks.
func (v *Vault) SessionRemaining() time.Duration {
	return v.session.Remaining()
}

// VerifyAuditLog checks the audit log's HMAC chain under the vault's
// audit key. Requires an unlocked session.
func (v *Vault) VerifyAuditLog() error {
	if err := v.requireUnlocked(); err != nil {
		return err
	}
	return v.audit.Verify()
}

// Close releases the vault, locking it first.
func (v *Vault) Close() error {
	v.Lock()
	return nil
}

// requireUnlocked gates every credential store operation. The session
// timeout is checked as of this call; an expired session wipes the key
// before the operation is refused.
func (v *Vault) requireUnlocked() error {
	err := v.session.RequireUnlocked()

	// The key is read under v.mu: the shell's signal handler may run
	// Lock concurrently with a store operation.
	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		if v.dek != nil {
			crypto.SecureWipe(v.dek)
			v.dek = nil
			v.audit.ClearKey()
		}
		return err
	}
	if v.dek == nil {
		return ErrKeyUnavailable
	}
	return nil
}

// validateMasterSecret enforces the length bounds on a master secret.
// Complexity is advised at the CLI layer, not enforced here.
func validateMasterSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("vault: master secret must be at least %d characters", MinSecretLength)
	}
	if len(secret) > MaxSecretLength {
		return fmt.Errorf("vault: master secret must be at most %d characters", MaxSecretLength)
	}
	return nil
}

// CheckPermissions warns on stderr when vault files are readable by
// group or other. Advisory only; never blocks an operation.
func (v *Vault) CheckPermissions() {
	if info, err := os.Stat(v.path); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			fmt.Fprintf(os.Stderr, "warning: vault directory has insecure permissions %04o (expected 0700)\n", perm)
		}
	}
	for _, name := range []string{SaltFileName, DBFileName} {
		if info, err := os.Stat(filepath.Join(v.path, name)); err == nil {
			if perm := info.Mode().Perm(); perm&0077 != 0 {
				fmt.Fprintf(os.Stderr, "warning: %s has insecure permissions %04o (expected 0600)\n", name, perm)
			}
		}
	}
}
