package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/pkg/security"
)

var (
	genLength    int
	genNoUpper   bool
	genNoDigits  bool
	genNoSymbols bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random password without touching the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := security.GeneratePassword(security.GenerateOptions{
			Length:    genLength,
			NoUpper:   genNoUpper,
			NoDigits:  genNoDigits,
			NoSymbols: genNoSymbols,
		})
		if err != nil {
			return err
		}
		fmt.Println(password)
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVarP(&genLength, "length", "l", 20, "Password length")
	generateCmd.Flags().BoolVar(&genNoUpper, "no-upper", false, "Exclude uppercase letters")
	generateCmd.Flags().BoolVar(&genNoDigits, "no-digits", false, "Exclude digits")
	generateCmd.Flags().BoolVar(&genNoSymbols, "no-symbols", false, "Exclude symbols")
}
