package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Character sets for generated passwords.
const (
	charsLower   = "abcdefghijklmnopqrstuvwxyz"
	charsUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsDigits  = "0123456789"
	charsSymbols = "!@#$%^&*()-_=+[]{};:,.<>?"
)

// Generation length bounds.
const (
	MinGeneratedLength = 8
	MaxGeneratedLength = 128
)

// GenerateOptions configures password generation.
type GenerateOptions struct {
	Length    int
	NoUpper   bool
	NoDigits  bool
	NoSymbols bool
}

// GeneratePassword returns a random password drawn from a
// cryptographically secure source. At least one character from every
// enabled set is guaranteed.
func GeneratePassword(opts GenerateOptions) (string, error) {
	if opts.Length < MinGeneratedLength || opts.Length > MaxGeneratedLength {
		return "", fmt.Errorf("security: length must be between %d and %d", MinGeneratedLength, MaxGeneratedLength)
	}

	sets := []string{charsLower}
	if !opts.NoUpper {
		sets = append(sets, charsUpper)
	}
	if !opts.NoDigits {
		sets = append(sets, charsDigits)
	}
	if !opts.NoSymbols {
		sets = append(sets, charsSymbols)
	}
	if len(sets) > opts.Length {
		return "", fmt.Errorf("security: length %d too short for %d character sets", opts.Length, len(sets))
	}

	var alphabet string
	for _, set := range sets {
		alphabet += set
	}

	password := make([]byte, opts.Length)
	// One guaranteed character per enabled set, the rest from the full
	// alphabet.
	for i, set := range sets {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		password[i] = c
	}
	for i := len(sets); i < opts.Length; i++ {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		password[i] = c
	}

	if err := shuffle(password); err != nil {
		return "", err
	}
	return string(password), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("security: failed to read random source: %w", err)
	}
	return set[n.Int64()], nil
}

// shuffle performs a Fisher-Yates shuffle with crypto/rand so the
// guaranteed characters do not cluster at the front.
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("security: failed to read random source: %w", err)
		}
		j := n.Int64()
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
