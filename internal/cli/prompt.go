// Package cli holds the interactive terminal helpers shared by the
// passguard commands.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// ErrPasswordMismatch indicates the confirmation entry did not match.
var ErrPasswordMismatch = fmt.Errorf("entries do not match")

// ReadSecret prompts for a secret without echoing it.
func ReadSecret(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	return secret, nil
}

// ReadSecretConfirm prompts for a secret twice and requires both
// entries to match.
func ReadSecretConfirm(prompt, confirmPrompt string) ([]byte, error) {
	first, err := ReadSecret(prompt)
	if err != nil {
		return nil, err
	}
	second, err := ReadSecret(confirmPrompt)
	if err != nil {
		return nil, err
	}
	if string(first) != string(second) {
		return nil, ErrPasswordMismatch
	}
	return first, nil
}

// ReadLine prompts for a single echoed line and trims whitespace. The
// caller supplies the reader so consecutive prompts share one buffer
// and never drop type-ahead.
func ReadLine(r *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question and returns true only on an explicit
// yes.
func Confirm(r *bufio.Reader, prompt string) bool {
	answer, err := ReadLine(r, prompt+" [y/N]: ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// NewStdinReader returns the buffered reader the interactive commands
// share for echoed input.
func NewStdinReader() *bufio.Reader {
	return bufio.NewReader(os.Stdin)
}
