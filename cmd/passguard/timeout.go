package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var timeoutCmd = &cobra.Command{
	Use:   "timeout [seconds]",
	Short: "Show or set the session idle timeout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Printf("Session timeout: %d seconds\n", cfg.SessionTimeoutSeconds)
			return nil
		}

		if !v.Exists() {
			return fmt.Errorf("no vault found at %s, run 'passguard init' first", vaultPath)
		}

		seconds, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", args[0], err)
		}

		cfg.SessionTimeoutSeconds = seconds
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(configPath()); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Printf("Session timeout set to %d seconds\n", seconds)
		return nil
	},
}
