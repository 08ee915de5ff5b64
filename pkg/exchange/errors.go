// Package exchange implements the encrypted export file format used to
// move credentials between vaults.
package exchange

import "errors"

var (
	// ErrInvalidMagic indicates the file is not a passguard export.
	ErrInvalidMagic = errors.New("invalid export file: magic number mismatch")

	// ErrUnsupportedVersion indicates the export format version is newer
	// than this build understands.
	ErrUnsupportedVersion = errors.New("unsupported export format version")

	// ErrIntegrityFailed indicates the HMAC trailer did not verify.
	ErrIntegrityFailed = errors.New("export integrity check failed: HMAC mismatch")

	// ErrDecryptionFailed indicates a wrong passphrase or a corrupted file.
	ErrDecryptionFailed = errors.New("export decryption failed: invalid passphrase or corrupted data")

	// ErrEmptyPassphrase indicates an empty export passphrase.
	ErrEmptyPassphrase = errors.New("passphrase cannot be empty")
)
