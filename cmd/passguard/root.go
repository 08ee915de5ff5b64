package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
	"github.com/passguard/passguard/internal/config"
	"github.com/passguard/passguard/pkg/crypto"
	"github.com/passguard/passguard/pkg/vault"
)

var (
	vaultPath string
	cfg       *config.Config
	v         *vault.Vault
)

var rootCmd = &cobra.Command{
	Use:   "passguard",
	Short: "passguard is a local encrypted credential vault",
	Long: `A single-user credential vault. Passwords are encrypted with
AES-256-GCM under a key derived from your master secret; nothing ever
leaves the vault directory.`,
	SilenceUsage: true,
	// PersistentPreRunE builds the Vault handle for every subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveVaultPath()
		if err != nil {
			return err
		}
		vaultPath = path

		cfg, err = config.Load(filepath.Join(vaultPath, config.FileName))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		v = vault.New(vaultPath, cfg)
		if v.Exists() {
			v.CheckPermissions()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(totpCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(timeoutCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(auditCmd)
}

// resolveVaultPath returns the vault directory, honoring the
// PASSGUARD_VAULT_DIR override.
func resolveVaultPath() (string, error) {
	if dir := os.Getenv("PASSGUARD_VAULT_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".passguard"), nil
}

// ensureUnlocked prompts for the master secret (and the TOTP code when
// one is configured) until the vault is unlocked. Every rejection is
// rendered as the same "authentication failed" regardless of cause, so
// the prompt never confirms whether the secret, the code or the
// lockout refused the attempt.
func ensureUnlocked() error {
	if !v.Exists() {
		return fmt.Errorf("no vault found at %s, run 'passguard init' first", vaultPath)
	}
	if !v.IsLocked() {
		return nil
	}

	secret, err := cli.ReadSecret("Enter master secret: ")
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(secret)

	res, err := v.Unlock(string(secret))
	if err != nil {
		return renderAuthError(err)
	}
	if res == vault.AuthSecondFactorRequired {
		code, err := cli.ReadSecret("Enter authenticator code: ")
		if err != nil {
			return err
		}
		if _, err := v.SecondFactor(string(code)); err != nil {
			return renderAuthError(err)
		}
	}
	return nil
}

// renderAuthError maps vault errors to user-facing messages. All
// authentication rejections collapse to one message.
func renderAuthError(err error) error {
	if errors.Is(err, vault.ErrAuthenticationFailed) {
		return fmt.Errorf("authentication failed")
	}
	return err
}
