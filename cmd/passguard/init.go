package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
	"github.com/passguard/passguard/internal/config"
	"github.com/passguard/passguard/pkg/crypto"
	"github.com/passguard/passguard/pkg/security"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new credential vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		if v.Exists() {
			return fmt.Errorf("a vault already exists at %s", vaultPath)
		}

		fmt.Printf("Initializing new vault at %s\n", vaultPath)

		secret, err := cli.ReadSecretConfirm(
			"Enter master secret: ",
			"Confirm master secret: ",
		)
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(secret)

		// Strength is advisory; length bounds are enforced by the vault.
		strength := security.CheckStrength(string(secret))
		fmt.Printf("Master secret strength: %s\n", strength)
		if strength == security.PasswordWeak {
			fmt.Println("Warning: consider a longer master secret")
		}

		if err := v.Init(string(secret)); err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}

		// Persist the default config so the tunables are discoverable.
		if err := cfg.Save(configPath()); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Println("Vault initialized successfully")
		return nil
	},
}

func configPath() string {
	return filepath.Join(vaultPath, config.FileName)
}
