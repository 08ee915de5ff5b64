package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/passguard/passguard/pkg/crypto"
)

// HMACLength is the length of the HMAC-SHA256 trailer in bytes.
const HMACLength = 32

// HKDF info strings separating the encryption and MAC keys.
const (
	hkdfInfoEncryption = "passguard-export-encryption"
	hkdfInfoMAC        = "passguard-export-mac"
)

// deriveKeys derives independent encryption and MAC keys from the
// export passphrase. Argon2id stretches the passphrase into a master
// key, HKDF-SHA256 then splits it so the AES key never doubles as the
// MAC key.
func deriveKeys(passphrase, salt []byte) (encKey, macKey []byte, err error) {
	if len(passphrase) == 0 {
		return nil, nil, ErrEmptyPassphrase
	}

	masterKey := crypto.DeriveKey(passphrase, salt)
	defer crypto.SecureWipe(masterKey)

	encKey, err = deriveHKDF(masterKey, []byte(hkdfInfoEncryption))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	macKey, err = deriveHKDF(masterKey, []byte(hkdfInfoMAC))
	if err != nil {
		crypto.SecureWipe(encKey)
		return nil, nil, fmt.Errorf("failed to derive MAC key: %w", err)
	}
	return encKey, macKey, nil
}

func deriveHKDF(secret, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, info)
	key := make([]byte, crypto.KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// computeHMAC computes HMAC-SHA256 over the given data.
func computeHMAC(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// verifyHMAC verifies the HMAC-SHA256 of the given data in constant
// time.
func verifyHMAC(data, expectedMAC, key []byte) bool {
	return hmac.Equal(computeHMAC(data, key), expectedMAC)
}
