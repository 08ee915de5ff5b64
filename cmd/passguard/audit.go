package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/pkg/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Verify the audit log",
	Long: `Walks the HMAC chain of the audit log and reports whether any
record was altered, removed or reordered. Requires unlocking the vault
because the chain key is stored encrypted inside it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		if err := v.VerifyAuditLog(); err != nil {
			if errors.Is(err, audit.ErrChainBroken) {
				return fmt.Errorf("audit log verification FAILED: %v", err)
			}
			return err
		}
		fmt.Println("Audit log verified: chain intact")
		return nil
	},
}
