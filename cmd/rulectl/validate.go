package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/todmy/visa-advisor/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a rule set for structural problems",
	Long: `Run every structural check over a rule set: consistency
errors, circular dependencies, unreachable conditions, and
evaluation-order violations.

Exits non-zero when the report status is error.

Examples:
  rulectl validate --visa-type E
  rulectl validate --file rules.yaml -o yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	defs, err := loadDefinitions()
	if err != nil {
		return err
	}

	report := validation.Validate(defs)
	if err := printResult(report); err != nil {
		return err
	}

	if report.Status == "error" {
		return fmt.Errorf("rule set has %d errors", report.ErrorCount)
	}
	return nil
}
