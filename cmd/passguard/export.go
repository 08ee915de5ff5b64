package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
	"github.com/passguard/passguard/pkg/crypto"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export all credentials to an encrypted file",
	Long: `Writes every credential to an encrypted export file protected by a
passphrase of its own. The export can be imported into any passguard
vault without sharing the master secret.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		passphrase, err := cli.ReadSecretConfirm(
			"Enter export passphrase: ",
			"Confirm export passphrase: ",
		)
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(passphrase)

		f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer f.Close()

		n, err := v.Export(f, passphrase)
		if err != nil {
			os.Remove(args[0])
			return err
		}
		fmt.Printf("Exported %d credentials to %s\n", n, args[0])
		return nil
	},
}
