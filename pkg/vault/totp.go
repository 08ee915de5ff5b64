package vault

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/passguard/passguard/pkg/audit"
	"github.com/passguard/passguard/pkg/crypto"
)

const totpIssuer = "PassGuard"

// EnableTOTP generates a fresh shared secret, stores it encrypted
// under the vault key, and returns the otpauth provisioning URL for an
// authenticator app. From the next Unlock on, a valid code is required
// to finish unlocking. Requires an unlocked session.
func (v *Vault) EnableTOTP(account string) (string, error) {
	if err := v.requireUnlocked(); err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	enabled, err := v.totpEnabled()
	if err != nil {
		return "", err
	}
	if enabled {
		return "", ErrTOTPAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: account,
	})
	if err != nil {
		return "", fmt.Errorf("vault: failed to generate totp secret: %w", err)
	}

	encrypted, err := crypto.Seal(v.dek, []byte(key.Secret()))
	if err != nil {
		return "", err
	}
	_, err = v.db.Exec(
		`INSERT INTO totp_secret (id, encrypted_secret, created_at) VALUES (1, ?, ?)`,
		encrypted, formatTime(v.now()),
	)
	if err != nil {
		return "", fmt.Errorf("vault: failed to store totp secret: %w", err)
	}

	_ = v.audit.Log(audit.OpTOTPEnable, audit.ResultSuccess, "")
	return key.URL(), nil
}

// DisableTOTP removes the second factor. Requires an unlocked session,
// which in turn required a valid code, so the factor cannot be
// stripped without passing it once.
func (v *Vault) DisableTOTP() error {
	if err := v.requireUnlocked(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	res, err := v.db.Exec(`DELETE FROM totp_secret WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("vault: failed to remove totp secret: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrTOTPNotEnabled
	}
	_ = v.audit.Log(audit.OpTOTPDisable, audit.ResultSuccess, "")
	return nil
}

// TOTPEnabled reports whether a second factor is configured. It only
// checks row presence, so it works on a locked vault.
func (v *Vault) TOTPEnabled() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.db == nil {
		return false, ErrNotInitialized
	}
	return v.totpEnabled()
}

// totpEnabled reports row presence. Caller holds v.mu.
func (v *Vault) totpEnabled() (bool, error) {
	var n int
	if err := v.db.QueryRow(`SELECT COUNT(*) FROM totp_secret WHERE id = 1`).Scan(&n); err != nil {
		return false, fmt.Errorf("vault: failed to query totp state: %w", err)
	}
	return n > 0, nil
}

// totpSecretWith decrypts the stored shared secret with the given key.
// Used during two-step unlock, before v.dek is installed. The caller
// owns the returned buffer and must wipe it.
func (v *Vault) totpSecretWith(key []byte) ([]byte, error) {
	var encrypted []byte
	err := v.db.QueryRow(`SELECT encrypted_secret FROM totp_secret WHERE id = 1`).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTOTPNotEnabled
	}
	if err != nil {
		return nil, fmt.Errorf("vault: failed to read totp secret: %w", err)
	}
	return crypto.Open(key, encrypted)
}

// validateTOTP checks a code against the shared secret at the given
// instant. Skew of one period tolerates clock drift between the vault
// host and the authenticator device.
func validateTOTP(secret []byte, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, string(secret), at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
