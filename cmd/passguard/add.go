package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
	"github.com/passguard/passguard/pkg/crypto"
	"github.com/passguard/passguard/pkg/security"
)

var (
	addGenerate  bool
	addGenLength int
	addNoSymbols bool
)

var addCmd = &cobra.Command{
	Use:   "add <service> <username>",
	Short: "Add a credential to the vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, username := args[0], args[1]

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		var password string
		if addGenerate {
			generated, err := security.GeneratePassword(security.GenerateOptions{
				Length:    addGenLength,
				NoSymbols: addNoSymbols,
			})
			if err != nil {
				return err
			}
			password = generated
		} else {
			entered, err := cli.ReadSecretConfirm(
				"Enter password: ",
				"Confirm password: ",
			)
			if err != nil {
				return err
			}
			defer crypto.SecureWipe(entered)
			password = string(entered)
			if security.CheckStrength(password) == security.PasswordWeak {
				fmt.Println("Warning: this password is weak")
			}
		}

		cred, err := v.AddCredential(service, username, password)
		if err != nil {
			return err
		}

		fmt.Printf("Credential saved for %s/%s (id %s)\n", cred.Service, cred.Username, cred.ID)
		if addGenerate {
			fmt.Printf("Generated password: %s\n", password)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().BoolVarP(&addGenerate, "generate", "g", false, "Generate a random password")
	addCmd.Flags().IntVar(&addGenLength, "length", 20, "Length of the generated password")
	addCmd.Flags().BoolVar(&addNoSymbols, "no-symbols", false, "Generate without symbol characters")
}
