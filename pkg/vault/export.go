package vault

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/passguard/passguard/pkg/audit"
	"github.com/passguard/passguard/pkg/crypto"
	"github.com/passguard/passguard/pkg/exchange"
)

// ImportReport summarizes an import run.
type ImportReport struct {
	Imported    int
	Skipped     int
	SkipReasons []string
}

// Export writes every credential to w as an encrypted exchange file
// protected by the given passphrase. The passphrase is independent of
// the master secret, so an export can be handed to another vault
// without sharing it.
func (v *Vault) Export(w io.Writer, passphrase []byte) (int, error) {
	var records []exchange.Record
	for cred, err := range v.Find("") {
		if err != nil {
			return 0, err
		}
		records = append(records, exchange.Record{
			Service:   cred.Service,
			Username:  cred.Username,
			Password:  cred.Password,
			CreatedAt: cred.CreatedAt,
			UpdatedAt: cred.UpdatedAt,
		})
	}

	if err := exchange.Write(w, passphrase, records); err != nil {
		return 0, err
	}
	_ = v.audit.Log(audit.OpExport, audit.ResultSuccess, fmt.Sprintf("%d records", len(records)))
	return len(records), nil
}

// Import reads an exchange file and adds its credentials to the store.
// Records whose (service, username) pair already exists are skipped,
// never overwritten. Imported records keep their original timestamps
// but get fresh ids, since ids are local to a vault.
func (v *Vault) Import(r io.Reader, passphrase []byte) (*ImportReport, error) {
	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}

	records, err := exchange.Read(r, passphrase)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	tx, err := v.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("vault: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	report := &ImportReport{}
	for _, rec := range records {
		service := strings.TrimSpace(rec.Service)
		username := strings.TrimSpace(rec.Username)
		if service == "" || username == "" || rec.Password == "" {
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons,
				fmt.Sprintf("%s/%s: missing required field", rec.Service, rec.Username))
			continue
		}

		var n int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM credentials WHERE service = ? AND username = ?`,
			service, username,
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("vault: failed to check for duplicate: %w", err)
		}
		if n > 0 {
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons,
				fmt.Sprintf("%s/%s: already exists", service, username))
			continue
		}

		encrypted, err := crypto.Seal(v.dek, []byte(rec.Password))
		if err != nil {
			return nil, err
		}
		createdAt := rec.CreatedAt
		updatedAt := rec.UpdatedAt
		if createdAt.IsZero() {
			createdAt = v.now()
		}
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
		_, err = tx.Exec(
			`INSERT INTO credentials (id, service, username, encrypted_password, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), service, username, encrypted, formatTime(createdAt), formatTime(updatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("vault: failed to insert credential: %w", err)
		}
		report.Imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("vault: failed to commit: %w", err)
	}

	_ = v.audit.Log(audit.OpImport, audit.ResultSuccess,
		fmt.Sprintf("%d imported, %d skipped", report.Imported, report.Skipped))
	return report, nil
}
