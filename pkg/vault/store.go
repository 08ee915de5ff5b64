package vault

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/passguard/passguard/pkg/audit"
	"github.com/passguard/passguard/pkg/crypto"
)

// Credential is a stored secret with its identifying pair. Password is
// only populated on read paths that decrypt; listing paths may leave
// it empty.
type Credential struct {
	ID        string
	Service   string
	Username  string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialUpdate carries the fields to change. Nil means keep the
// stored value.
type CredentialUpdate struct {
	Service  *string
	Username *string
	Password *string
}

// AddCredential stores a new credential. The (service, username) pair
// must not already exist; the check and the insert run in one
// transaction so concurrent adds cannot race past it.
func (v *Vault) AddCredential(service, username, password string) (*Credential, error) {
	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}
	service = strings.TrimSpace(service)
	username = strings.TrimSpace(username)
	if service == "" || username == "" || password == "" {
		return nil, fmt.Errorf("vault: service, username and password must not be empty")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	encrypted, err := crypto.Seal(v.dek, []byte(password))
	if err != nil {
		return nil, err
	}

	tx, err := v.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("vault: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM credentials WHERE service = ? AND username = ?`,
		service, username,
	).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to check for duplicate: %w", err)
	}
	if n > 0 {
		return nil, ErrDuplicateCredential
	}

	now := v.now()
	cred := &Credential{
		ID:        uuid.NewString(),
		Service:   service,
		Username:  username,
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = tx.Exec(
		`INSERT INTO credentials (id, service, username, encrypted_password, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.Service, cred.Username, encrypted, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to insert credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("vault: failed to commit: %w", err)
	}

	_ = v.audit.Log(audit.OpCredentialAdd, audit.ResultSuccess, cred.Service)
	return cred, nil
}

// Find yields credentials whose service contains the filter,
// case-insensitively, ordered by service then username. An empty
// filter yields everything. Passwords are decrypted one record at a
// time as the sequence is consumed, so an early break never pays for
// the whole store.
func (v *Vault) Find(filter string) iter.Seq2[*Credential, error] {
	return func(yield func(*Credential, error) bool) {
		if err := v.requireUnlocked(); err != nil {
			yield(nil, err)
			return
		}

		v.mu.Lock()
		defer v.mu.Unlock()

		rows, err := v.db.Query(
			`SELECT id, service, username, encrypted_password, created_at, updated_at
			 FROM credentials ORDER BY service COLLATE NOCASE, username COLLATE NOCASE`,
		)
		if err != nil {
			yield(nil, fmt.Errorf("vault: failed to query credentials: %w", err))
			return
		}
		defer rows.Close()

		needle := strings.ToLower(strings.TrimSpace(filter))
		for rows.Next() {
			cred, encrypted, err := scanCredential(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if needle != "" && !strings.Contains(strings.ToLower(cred.Service), needle) {
				continue
			}
			password, err := crypto.Open(v.dek, encrypted)
			if err != nil {
				yield(nil, fmt.Errorf("vault: failed to decrypt credential %s: %w", cred.ID, err))
				return
			}
			cred.Password = string(password)
			if !yield(cred, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("vault: failed to iterate credentials: %w", err))
		}
	}
}

// GetCredential fetches and decrypts a single credential by id.
func (v *Vault) GetCredential(id string) (*Credential, error) {
	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	row := v.db.QueryRow(
		`SELECT id, service, username, encrypted_password, created_at, updated_at
		 FROM credentials WHERE id = ?`, id,
	)
	cred, encrypted, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	password, err := crypto.Open(v.dek, encrypted)
	if err != nil {
		return nil, err
	}
	cred.Password = string(password)
	return cred, nil
}

// UpdateCredential applies the non-nil fields of upd. When the
// identifying pair changes, uniqueness is re-checked against every
// other record in the same transaction.
func (v *Vault) UpdateCredential(id string, upd CredentialUpdate) (*Credential, error) {
	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	tx, err := v.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("vault: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRow(
		`SELECT id, service, username, encrypted_password, created_at, updated_at
		 FROM credentials WHERE id = ?`, id,
	)
	cred, encrypted, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}

	if upd.Service != nil {
		cred.Service = strings.TrimSpace(*upd.Service)
	}
	if upd.Username != nil {
		cred.Username = strings.TrimSpace(*upd.Username)
	}
	if cred.Service == "" || cred.Username == "" {
		return nil, fmt.Errorf("vault: service and username must not be empty")
	}

	if upd.Service != nil || upd.Username != nil {
		var n int
		err = tx.QueryRow(
			`SELECT COUNT(*) FROM credentials WHERE service = ? AND username = ? AND id != ?`,
			cred.Service, cred.Username, cred.ID,
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("vault: failed to check for duplicate: %w", err)
		}
		if n > 0 {
			return nil, ErrDuplicateCredential
		}
	}

	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, fmt.Errorf("vault: password must not be empty")
		}
		encrypted, err = crypto.Seal(v.dek, []byte(*upd.Password))
		if err != nil {
			return nil, err
		}
		cred.Password = *upd.Password
	} else {
		password, err := crypto.Open(v.dek, encrypted)
		if err != nil {
			return nil, err
		}
		cred.Password = string(password)
	}

	cred.UpdatedAt = v.now()
	_, err = tx.Exec(
		`UPDATE credentials SET service = ?, username = ?, encrypted_password = ?, updated_at = ? WHERE id = ?`,
		cred.Service, cred.Username, encrypted, formatTime(cred.UpdatedAt), cred.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to update credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("vault: failed to commit: %w", err)
	}

	_ = v.audit.Log(audit.OpCredentialUpdate, audit.ResultSuccess, cred.Service)
	return cred, nil
}

// DeleteCredential removes a credential by id.
func (v *Vault) DeleteCredential(id string) error {
	if err := v.requireUnlocked(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	res, err := v.db.Exec(`DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("vault: failed to delete credential: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrCredentialNotFound
	}
	_ = v.audit.Log(audit.OpCredentialDelete, audit.ResultSuccess, id)
	return nil
}

// Count returns the number of stored credentials.
func (v *Vault) Count() (int, error) {
	if err := v.requireUnlocked(); err != nil {
		return 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var n int
	if err := v.db.QueryRow(`SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vault: failed to count credentials: %w", err)
	}
	return n, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(s scanner) (*Credential, []byte, error) {
	var (
		cred               Credential
		encrypted          []byte
		createdAt, updated string
	)
	err := s.Scan(&cred.ID, &cred.Service, &cred.Username, &encrypted, &createdAt, &updated)
	if err != nil {
		return nil, nil, err
	}
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, nil, fmt.Errorf("vault: invalid created_at on %s: %w", cred.ID, err)
	}
	if cred.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, nil, fmt.Errorf("vault: invalid updated_at on %s: %w", cred.ID, err)
	}
	return &cred, encrypted, nil
}
