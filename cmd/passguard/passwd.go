package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
	"github.com/passguard/passguard/pkg/crypto"
	"github.com/passguard/passguard/pkg/security"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the master secret",
	Long: `Changes the master secret and rotates the vault encryption key in
one atomic step. Every stored password is re-encrypted; if anything
fails the vault is left untouched under the old secret.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		oldSecret, err := cli.ReadSecret("Enter current master secret: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(oldSecret)

		newSecret, err := cli.ReadSecretConfirm(
			"Enter new master secret: ",
			"Confirm new master secret: ",
		)
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(newSecret)

		if security.CheckStrength(string(newSecret)) == security.PasswordWeak {
			fmt.Println("Warning: consider a longer master secret")
		}

		if err := v.ChangeMasterSecret(string(oldSecret), string(newSecret)); err != nil {
			return renderAuthError(err)
		}

		fmt.Println("Master secret changed; vault key rotated")
		return nil
	},
}
