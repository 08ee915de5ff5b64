// Package audit provides an append-only operation log with an HMAC
// chain for tamper detection. Each record carries the HMAC of its
// predecessor, so removing or reordering lines breaks the chain.
package audit

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Operation types.
const (
	OpVaultInit    = "vault.init"
	OpVaultLock    = "vault.lock"
	OpVaultUnlock  = "vault.unlock"
	OpAuthFailed   = "auth.failed"
	OpMasterChange = "auth.master_change"

	OpTOTPEnable  = "totp.enable"
	OpTOTPDisable = "totp.disable"

	OpCredentialAdd    = "credential.add"
	OpCredentialUpdate = "credential.update"
	OpCredentialDelete = "credential.delete"

	OpExport = "store.export"
	OpImport = "store.import"
	OpDedupe = "store.dedupe"
)

// Result values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDenied  = "denied"
)

// ErrChainBroken indicates the log failed chain verification.
var ErrChainBroken = errors.New("audit: log chain verification failed")

const genesisHash = "genesis"

// Event is a single audit record.
type Event struct {
	Timestamp string `json:"ts"` // RFC 3339 nanosecond precision
	Operation string `json:"op"`
	Result    string `json:"result"`
	Detail    string `json:"detail,omitempty"`
	Sequence  int64  `json:"seq"`
	PrevHash  string `json:"prev"`
	HMAC      string `json:"hmac"`
}

// Logger appends HMAC-chained events to a JSONL file. The HMAC key is
// derived from key material held by the vault, so the log can only be
// extended or verified while the vault is unlocked. Without a key set,
// Log is a silent no-op.
type Logger struct {
	mu       sync.Mutex
	path     string
	key      []byte
	sequence int64
	prevHash string
}

// NewLogger creates a logger writing to path. No key is set; events
// are dropped until SetKey.
func NewLogger(path string) *Logger {
	return &Logger{path: path, prevHash: genesisHash}
}

// SetKey derives the HMAC key from the given key material with
// HKDF-SHA256 and resumes the chain from the last record on disk.
func (l *Logger) SetKey(keyMaterial []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := hkdf.New(sha256.New, keyMaterial, nil, []byte("passguard-audit-v1"))
	key := make([]byte, 32)
	if _, err := r.Read(key); err != nil {
		return fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}
	l.key = key

	seq, prev, err := l.tailState()
	if err != nil {
		return err
	}
	l.sequence = seq
	l.prevHash = prev
	return nil
}

// ClearKey forgets the HMAC key. Subsequent Log calls are no-ops.
func (l *Logger) ClearKey() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.key {
		l.key[i] = 0
	}
	l.key = nil
}

// Log appends an event to the chain. Auditing never blocks an
// operation: callers ignore the returned error and a missing key
// drops the event.
func (l *Logger) Log(op, result, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.key == nil {
		return nil
	}

	l.sequence++
	event := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Operation: op,
		Result:    result,
		Detail:    detail,
		Sequence:  l.sequence,
		PrevHash:  l.prevHash,
	}
	event.HMAC = l.recordHMAC(&event)
	l.prevHash = event.HMAC

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: failed to open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

// Verify walks the whole log and checks every record's HMAC and chain
// link. Requires the key to be set.
func (l *Logger) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.key == nil {
		return fmt.Errorf("audit: HMAC key not set")
	}

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("audit: failed to open log: %w", err)
	}
	defer f.Close()

	prev := genesisHash
	var seq int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return fmt.Errorf("%w: malformed record after seq %d", ErrChainBroken, seq)
		}
		if event.PrevHash != prev || event.Sequence != seq+1 {
			return fmt.Errorf("%w: break at seq %d", ErrChainBroken, event.Sequence)
		}
		if !hmac.Equal([]byte(l.recordHMAC(&event)), []byte(event.HMAC)) {
			return fmt.Errorf("%w: bad HMAC at seq %d", ErrChainBroken, event.Sequence)
		}
		prev = event.HMAC
		seq = event.Sequence
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("audit: failed to read log: %w", err)
	}
	return nil
}

// recordHMAC computes the HMAC over every significant field of an
// event. Caller holds l.mu.
func (l *Logger) recordHMAC(event *Event) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s",
		event.Timestamp,
		event.Operation,
		event.Result,
		event.Detail,
		event.Sequence,
		event.PrevHash,
	)
	mac := hmac.New(sha256.New, l.key)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// tailState reads the last record to resume the chain. A missing or
// empty file starts a fresh chain. Caller holds l.mu.
func (l *Logger) tailState() (int64, string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, genesisHash, nil
		}
		return 0, "", fmt.Errorf("audit: failed to open log: %w", err)
	}
	defer f.Close()

	seq := int64(0)
	prev := genesisHash
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		seq = event.Sequence
		prev = event.HMAC
	}
	if err := scanner.Err(); err != nil {
		return 0, "", fmt.Errorf("audit: failed to read log: %w", err)
	}
	return seq, prev, nil
}
