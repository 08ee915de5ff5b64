package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listShowPasswords bool

var listCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List credentials, optionally filtered by service",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := ""
		if len(args) == 1 {
			filter = args[0]
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSERVICE\tUSERNAME\tPASSWORD\tUPDATED")

		count := 0
		for cred, err := range v.Find(filter) {
			if err != nil {
				return err
			}
			password := "********"
			if listShowPasswords {
				password = cred.Password
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cred.ID, cred.Service, cred.Username, password,
				cred.UpdatedAt.Local().Format("2006-01-02 15:04"))
			count++
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if count == 0 {
			fmt.Println("No credentials found")
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single credential including its password",
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

		fmt.Printf("ID:       %s\n", cred.ID)
		fmt.Printf("Service:  %s\n", cred.Service)
		fmt.Printf("Username: %s\n", cred.Username)
		fmt.Printf("Password: %s\n", cred.Password)
		fmt.Printf("Created:  %s\n", cred.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated:  %s\n", cred.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listShowPasswords, "show-passwords", false, "Print passwords instead of masking them")
}
