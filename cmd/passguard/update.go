package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
	"github.com/passguard/passguard/pkg/crypto"
	"github.com/passguard/passguard/pkg/vault"
)

var (
	updateService  string
	updateUsername string
	updatePassword bool
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if updateService == "" && updateUsername == "" && !updatePassword {
			return fmt.Errorf("nothing to update: pass --service, --username or --password")
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		upd := vault.CredentialUpdate{}
		if updateService != "" {
			upd.Service = &updateService
		}
		if updateUsername != "" {
			upd.Username = &updateUsername
		}
		if updatePassword {
			entered, err := cli.ReadSecretConfirm(
				"Enter new password: ",
				"Confirm new password: ",
			)
			if err != nil {
				return err
			}
			defer crypto.SecureWipe(entered)
			password := string(entered)
			upd.Password = &password
		}

		cred, err := v.UpdateCredential(args[0], upd)
		if err != nil {
			return err
		}
		fmt.Printf("Credential %s updated (%s/%s)\n", cred.ID, cred.Service, cred.Username)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		cred, err := v.GetCredential(args[0])
		if err != nil {
			return err
		}
		if !cli.Confirm(cli.NewStdinReader(), fmt.Sprintf("Delete credential for %s/%s?", cred.Service, cred.Username)) {
			fmt.Println("Aborted")
			return nil
		}

		if err := v.DeleteCredential(args[0]); err != nil {
			return err
		}
		fmt.Println("Credential deleted")
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateService, "service", "", "New service name")
	updateCmd.Flags().StringVar(&updateUsername, "username", "", "New username")
	updateCmd.Flags().BoolVar(&updatePassword, "password", false, "Prompt for a new password")
}
