package vault

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/passguard/passguard/pkg/crypto"
)

// Key lifecycle. The data encryption key (DEK) is generated exactly
// once from a cryptographically secure random source and stored in the
// vault_keys table wrapped with AES-256-GCM under a key-encryption key
// (KEK) derived from the master secret via Argon2id. The KDF salt
// lives in vault.salt and is constant for the life of the vault; a
// master-secret change re-wraps a *new* DEK under the new KEK inside
// the rotation transaction, so the swap is atomic with the re-encrypted
// records. There is no key escrow: losing the DEK loses every record.

// readSalt loads the KDF salt, validating its length to detect
// corruption or tampering.
func (v *Vault) readSalt() ([]byte, error) {
	salt, err := os.ReadFile(filepath.Join(v.path, SaltFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyUnavailable
		}
		return nil, fmt.Errorf("vault: failed to read salt file: %w", err)
	}
	if len(salt) != crypto.SaltLength {
		return nil, fmt.Errorf("%w: salt file corrupted", ErrKeyUnavailable)
	}
	return salt, nil
}

// unwrapDEK reads the wrapped key row and decrypts it under the KEK.
// A missing row is ErrKeyUnavailable; a failed decryption means the
// KEK (and so the master secret) is wrong and is reported as such by
// the caller.
func unwrapDEK(db *sql.DB, kek []byte) ([]byte, error) {
	var wrapped []byte
	err := db.QueryRow(`SELECT wrapped_key FROM vault_keys WHERE id = 1`).Scan(&wrapped)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyUnavailable
		}
		return nil, fmt.Errorf("vault: failed to read wrapped key: %w", err)
	}
	return crypto.Open(kek, wrapped)
}

// wrapDEK stores the DEK encrypted under the KEK, replacing any
// existing row. Runs inside the caller's transaction.
func wrapDEK(tx *sql.Tx, kek, dek []byte, now string) error {
	wrapped, err := crypto.Seal(kek, dek)
	if err != nil {
		return fmt.Errorf("vault: failed to wrap key: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO vault_keys (id, wrapped_key, created_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET wrapped_key = excluded.wrapped_key, created_at = excluded.created_at`,
		wrapped, now,
	); err != nil {
		return fmt.Errorf("vault: failed to store wrapped key: %w", err)
	}
	return nil
}

// rotateTo re-encrypts every stored secret under newDEK and swaps the
// wrapped key to newDEK under newKEK, all in one transaction. Two
// phases: first every row is rewritten, then every rewritten row is
// read back and verified to decrypt under newDEK before the commit.
// Any failure rolls the transaction back and reports ErrRotationAborted
// with the old key and all old ciphertext fully intact.
//
// A non-nil newHash replaces the stored master-secret hash in the same
// transaction, making a master-secret change atomic with the rotation.
//
// Caller holds v.mu and must ensure v.dek is the current key.
func (v *Vault) rotateTo(newKEK, newDEK, newHash []byte) error {
	tx, err := v.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRotationAborted, err)
	}
	defer tx.Rollback()

	// Phase one: rewrite all credential ciphertext under the new key.
	rows, err := tx.Query(`SELECT id, encrypted_password FROM credentials`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRotationAborted, err)
	}
	type reencrypted struct {
		id   string
		blob []byte
	}
	var updates []reencrypted
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", ErrRotationAborted, err)
		}
		plain, err := crypto.Open(v.dek, blob)
		if err != nil {
			rows.Close()
			return fmt.Errorf("%w: record %s does not decrypt under the active key", ErrRotationAborted, id)
		}
		sealed, err := crypto.Seal(newDEK, plain)
		crypto.SecureWipe(plain)
		if err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", ErrRotationAborted, err)
		}
		updates = append(updates, reencrypted{id: id, blob: sealed})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("%w: %v", ErrRotationAborted, err)
	}
	rows.Close()

	for _, u := range updates {
		if _, err := tx.Exec(`UPDATE credentials SET encrypted_password = ? WHERE id = ?`, u.blob, u.id); err != nil {
			return fmt.Errorf("%w: %v", ErrRotationAborted, err)
		}
	}

	// The TOTP secret, if present, is encrypted under the DEK too.
	var totpBlob []byte
	err = tx.QueryRow(`SELECT encrypted_secret FROM totp_secret WHERE id = 1`).Scan(&totpBlob)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no second factor configured
	case err != nil:
		return fmt.Errorf("%w: %v", ErrRotationAborted, err)
	default:
		plain, err := crypto.Open(v.dek, totpBlob)
		if err != nil {
			return fmt.Errorf("%w: second-factor secret does not decrypt under the active key", ErrRotationAborted)
		}
		sealed, err := crypto.Seal(newDEK, plain)
		crypto.SecureWipe(plain)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRotationAborted, err)
		}
		if _, err := tx.Exec(`UPDATE totp_secret SET encrypted_secret = ? WHERE id = 1`, sealed); err != nil {
			return fmt.Errorf("%w: %v", ErrRotationAborted, err)
		}
	}

	// The audit key keeps its value across rotations so the HMAC chain
	// stays verifiable; only its wrapping moves to the new DEK.
	var auditBlob []byte
	err = tx.QueryRow(`SELECT encrypted_key FROM audit_key WHERE id = 1`).Scan(&auditBlob)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// vault predates audit keys
	case err != nil:
		return fmt.Errorf("%w: %v", ErrRotationAborted, err)
	default:
		plain, err := crypto.Open(v.dek, auditBlob)
		if err != nil {
			return fmt.Errorf("%w: audit key does not decrypt under the active key", ErrRotationAborted)
		}
		sealed, err := crypto.Seal(newDEK, plain)
		crypto.SecureWipe(plain)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRotationAborted, err)
		}
		if _, err := tx.Exec(`UPDATE audit_key SET encrypted_key = ? WHERE id = 1`, sealed); err != nil {
			return fmt.Errorf("%w: %v", ErrRotationAborted, err)
		}
	}

	// Phase two: verify every rewritten record decrypts under the new
	// key before anything is committed.
	verify, err := tx.Query(`SELECT id, encrypted_password FROM credentials`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRotationAborted, err)
	}
	for verify.Next() {
		var id string
		var blob []byte
		if err := verify.Scan(&id, &blob); err != nil {
			verify.Close()
			return fmt.Errorf("%w: %v", ErrRotationAborted, err)
		}
		plain, err := crypto.Open(newDEK, blob)
		if err != nil {
			verify.Close()
			return fmt.Errorf("%w: record %s failed verification under the new key", ErrRotationAborted, id)
		}
		crypto.SecureWipe(plain)
	}
	if err := verify.Err(); err != nil {
		verify.Close()
		return fmt.Errorf("%w: %v", ErrRotationAborted, err)
	}
	verify.Close()

	now := formatTime(v.now())
	if err := wrapDEK(tx, newKEK, newDEK, now); err != nil {
		return fmt.Errorf("%w: %v", ErrRotationAborted, err)
	}

	if newHash != nil {
		if _, err := tx.Exec(`UPDATE master_credential SET secret_hash = ?, updated_at = ? WHERE id = 1`, newHash, now); err != nil {
			return fmt.Errorf("%w: %v", ErrRotationAborted, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrRotationAborted, err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory
// and renames it into place, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("vault: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("vault: failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("vault: failed to set temp file permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("vault: failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vault: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vault: failed to commit file: %w", err)
	}
	return nil
}
