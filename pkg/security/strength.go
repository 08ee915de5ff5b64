// Package security provides password strength evaluation and random
// password generation for the vault.
package security

// PasswordStrength is the strength level of a password.
type PasswordStrength int

const (
	// PasswordWeak indicates a password below the minimum length.
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable password.
	PasswordFair
	// PasswordGood indicates a good password.
	PasswordGood
	// PasswordStrong indicates a strong password.
	PasswordStrong
)

// String returns a human-readable representation of the strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// CheckStrength evaluates a password. Length is the primary factor per
// NIST SP 800-63B; composition rules are deliberately not enforced.
func CheckStrength(password string) PasswordStrength {
	switch length := len(password); {
	case length >= 20:
		return PasswordStrong
	case length >= 14:
		return PasswordGood
	case length >= 8:
		return PasswordFair
	default:
		return PasswordWeak
	}
}
