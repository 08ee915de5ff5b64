package vault

import "errors"

// Sentinel errors for the vault security core. Authentication failures
// of every kind share one generic error so that the rendered message
// never confirms which check failed; callers that need the distinction
// inspect the AuthResult returned alongside it.
var (
	// ErrAlreadyInitialized indicates setup was called on an existing vault.
	ErrAlreadyInitialized = errors.New("vault: vault already initialized")

	// ErrNotInitialized indicates no vault exists at the configured path.
	ErrNotInitialized = errors.New("vault: vault not initialized")

	// ErrAuthenticationFailed is the uniform rejection for a wrong master
	// secret, an active lockout and a failed second factor.
	ErrAuthenticationFailed = errors.New("vault: authentication failed")

	// ErrSessionLocked indicates an operation was attempted while the
	// session is locked (explicitly or by idle timeout).
	ErrSessionLocked = errors.New("vault: session is locked")

	// ErrDuplicateCredential indicates a (service, username) pair that
	// already exists in the store.
	ErrDuplicateCredential = errors.New("vault: credential already exists for this service and username")

	// ErrCredentialNotFound indicates no credential matches the given id.
	ErrCredentialNotFound = errors.New("vault: credential not found")

	// ErrKeyUnavailable indicates the encryption key is missing or cannot
	// be read. This is fatal for all vault operations: without the key
	// the stored records are unrecoverable.
	ErrKeyUnavailable = errors.New("vault: encryption key unavailable")

	// ErrRotationAborted indicates a key rotation failed and was rolled
	// back; the previous key and all records remain fully usable.
	ErrRotationAborted = errors.New("vault: key rotation aborted")

	// ErrTOTPAlreadyEnabled indicates enable was called with a second
	// factor already configured.
	ErrTOTPAlreadyEnabled = errors.New("vault: second factor already enabled")

	// ErrTOTPNotEnabled indicates no second factor is configured.
	ErrTOTPNotEnabled = errors.New("vault: second factor not enabled")

	// ErrNoPendingSecondFactor indicates SecondFactor was called without
	// a preceding Unlock that reported AuthSecondFactorRequired.
	ErrNoPendingSecondFactor = errors.New("vault: no second factor challenge pending")
)

// AuthResult is the closed set of authentication outcomes. Every call
// site must handle every variant; the uniform ErrAuthenticationFailed
// accompanies all non-success variants except AuthSecondFactorRequired,
// which is a prompt to continue, not a failure.
type AuthResult int

const (
	AuthSuccess AuthResult = iota
	AuthWrongSecret
	AuthLockedOut
	AuthSecondFactorRequired
	AuthSecondFactorFailed
)

// String returns the variant name for logging and tests. It never
// appears in user-facing messages.
func (r AuthResult) String() string {
	switch r {
	case AuthSuccess:
		return "success"
	case AuthWrongSecret:
		return "wrong_secret"
	case AuthLockedOut:
		return "locked_out"
	case AuthSecondFactorRequired:
		return "second_factor_required"
	case AuthSecondFactorFailed:
		return "second_factor_failed"
	default:
		return "unknown"
	}
}
