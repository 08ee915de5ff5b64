package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
)

var totpCmd = &cobra.Command{
	Use:   "totp",
	Short: "Manage the time-based one-time-password second factor",
}

var totpEnableCmd = &cobra.Command{
	Use:   "enable <account>",
	Short: "Enable TOTP: every unlock will require an authenticator code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		url, err := v.EnableTOTP(args[0])
		if err != nil {
			return err
		}

		fmt.Println("Second factor enabled. Add this URL to your authenticator app:")
		fmt.Println()
		fmt.Printf("  %s\n", url)
		fmt.Println()
		fmt.Println("Keep it safe: it is shown only once.")
		return nil
	},
}

var totpDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the TOTP second factor",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		if !cli.Confirm(cli.NewStdinReader(), "Disable the second factor?") {
			fmt.Println("Aborted")
			return nil
		}
		if err := v.DisableTOTP(); err != nil {
			return err
		}
		fmt.Println("Second factor disabled")
		return nil
	},
}

var totpStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a second factor is configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		enabled, err := v.TOTPEnabled()
		if err != nil {
			return err
		}
		if enabled {
			fmt.Println("Second factor: enabled")
		} else {
			fmt.Println("Second factor: not enabled")
		}
		return nil
	},
}

func init() {
	totpCmd.AddCommand(totpEnableCmd)
	totpCmd.AddCommand(totpDisableCmd)
	totpCmd.AddCommand(totpStatusCmd)
}
