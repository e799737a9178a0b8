package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a rule set to a portable file",
	Long: `Write a rule set to a versioned document, YAML or JSON by
file extension, stdout when no output file is given.

Examples:
  rulectl export --visa-type E --out e-rules.yaml
  rulectl export --file rules.json --out rules.yaml`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (extension picks the format)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	defs, err := loadDefinitions()
	if err != nil {
		return err
	}

	track := visaType
	if track == "" {
		track = "ALL"
	}
	doc := ruleDocument{
		Version:  "1.0",
		VisaType: track,
		Rules:    defs,
	}

	if exportOut == "" {
		return printResult(doc)
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(exportOut)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Exported %d rules to %s at %s\n", len(defs), exportOut, time.Now().Format(time.RFC3339))
	return nil
}
