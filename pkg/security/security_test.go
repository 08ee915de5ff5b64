package security

import (
	"strings"
	"testing"
)

func TestCheckStrength(t *testing.T) {
	cases := []struct {
		password string
		want     PasswordStrength
	}{
		{"", PasswordWeak},
		{"short", PasswordWeak},
		{"eightchr", PasswordFair},
		{"twelve chars", PasswordFair},
		{"fourteen chars", PasswordGood},
		{"twenty characters!!!", PasswordStrong},
	}
	for _, c := range cases {
		if got := CheckStrength(c.password); got != c.want {
			t.Errorf("CheckStrength(%q) = %v, want %v", c.password, got, c.want)
		}
	}
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword(GenerateOptions{Length: 20})
	if err != nil {
		t.Fatalf("GeneratePassword() error = %v", err)
	}
	if len(pw) != 20 {
		t.Errorf("len = %d, want 20", len(pw))
	}
	if !strings.ContainsAny(pw, charsLower) ||
		!strings.ContainsAny(pw, charsUpper) ||
		!strings.ContainsAny(pw, charsDigits) ||
		!strings.ContainsAny(pw, charsSymbols) {
		t.Errorf("password %q missing a character class", pw)
	}
}

func TestGeneratePasswordNoSymbols(t *testing.T) {
	pw, err := GeneratePassword(GenerateOptions{Length: 16, NoSymbols: true})
	if err != nil {
		t.Fatalf("GeneratePassword() error = %v", err)
	}
	if strings.ContainsAny(pw, charsSymbols) {
		t.Errorf("password %q contains symbols", pw)
	}
}

func TestGeneratePasswordLengthBounds(t *testing.T) {
	if _, err := GeneratePassword(GenerateOptions{Length: 4}); err == nil {
		t.Error("GeneratePassword() accepted length below minimum")
	}
	if _, err := GeneratePassword(GenerateOptions{Length: 500}); err == nil {
		t.Error("GeneratePassword() accepted length above maximum")
	}
}

func TestGeneratePasswordUnique(t *testing.T) {
	a, err := GeneratePassword(GenerateOptions{Length: 32})
	if err != nil {
		t.Fatal(err)
	}
	b, err := GeneratePassword(GenerateOptions{Length: 32})
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two generated passwords are identical")
	}
}
