package vault

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// openDB opens the vault database with WAL mode and a busy timeout.
// The connection pool is capped at one connection: the vault is a
// single-actor system and a second connection only invites "database
// is locked" errors.
func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("vault: failed to open database: %w", err)
	}
	return db, nil
}

// createTables defines the vault schema. Timestamps are stored as
// RFC 3339 text so the schema is driver-agnostic.
func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS master_credential (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			secret_hash BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vault_keys (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			wrapped_key BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS totp_secret (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			encrypted_secret BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_key (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			encrypted_key BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id TEXT PRIMARY KEY,
			service TEXT NOT NULL,
			username TEXT NOT NULL,
			encrypted_password BLOB NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (service, username)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("vault: failed to create tables: %w", err)
		}
	}
	return nil
}

// formatTime and parseTime convert between time.Time and the TEXT
// representation used in the schema.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("vault: invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
