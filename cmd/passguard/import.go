package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
	"github.com/passguard/passguard/pkg/crypto"
	"github.com/passguard/passguard/pkg/importer"
	"github.com/passguard/passguard/pkg/vault"
)

var importCSV bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import credentials from an export file",
	Long: `Imports credentials from a passguard export file, or with --csv from
a generic CSV export (header row with service/username/password
columns). Existing (service, username) pairs are skipped, never
overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		if importCSV {
			return importFromCSV(args[0])
		}
		return importFromExchange(args[0])
	},
}

func importFromExchange(path string) error {
	passphrase, err := cli.ReadSecret("Enter export passphrase: ")
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(passphrase)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	report, err := v.Import(f, passphrase)
	if err != nil {
		return err
	}
	printImportReport(report)
	return nil
}

func importFromCSV(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	result, err := importer.ParseCSV(data)
	if err != nil {
		return err
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}

	report := &vault.ImportReport{}
	for _, entry := range result.Entries {
		_, err := v.AddCredential(entry.Service, entry.Username, entry.Password)
		switch {
		case errors.Is(err, vault.ErrDuplicateCredential):
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons,
				fmt.Sprintf("%s/%s: already exists", entry.Service, entry.Username))
		case err != nil:
			return err
		default:
			report.Imported++
		}
	}
	printImportReport(report)
	return nil
}

func printImportReport(report *vault.ImportReport) {
	fmt.Printf("Imported %d credentials, skipped %d\n", report.Imported, report.Skipped)
	for _, reason := range report.SkipReasons {
		fmt.Printf("  skipped %s\n", reason)
	}
}

func init() {
	importCmd.Flags().BoolVar(&importCSV, "csv", false, "Treat the input as a CSV export from another password manager")
}
