package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
)

var dedupeResolve bool

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find and optionally remove duplicate credentials",
	Long: `Scans for credentials whose service and username collapse to the
same pair after case folding and Unicode normalization. With --resolve
only the most recently updated entry of each group is kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		groups, err := v.FindDuplicates()
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicates found")
			return nil
		}

		for _, group := range groups {
			fmt.Printf("%s / %s (%d entries):\n", group.Service, group.Username, len(group.Entries))
			for i, cred := range group.Entries {
				marker := "delete"
				if i == 0 {
					marker = "keep  "
				}
				fmt.Printf("  [%s] %s  %s/%s  updated %s\n",
					marker, cred.ID, cred.Service, cred.Username,
					cred.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
		}

		if !dedupeResolve {
			fmt.Println("\nRun again with --resolve to remove the older entries")
			return nil
		}

		if !cli.Confirm(cli.NewStdinReader(), "Delete the marked entries?") {
			fmt.Println("Aborted")
			return nil
		}
		deleted, err := v.ResolveDuplicates(groups)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d duplicate credentials\n", deleted)
		return nil
	},
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeResolve, "resolve", false, "Delete all but the newest entry of each group")
}
