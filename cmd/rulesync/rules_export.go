package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/praxical/rulesync/internal/cli"
	"github.com/praxical/rulesync/internal/model"
)

var exportOutput string

// ruleExport is the YAML document written by export and read by import.
type ruleExport struct {
	Rules []model.Rule `yaml:"rules"`
}

func rulesExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the working rules to a YAML file",
		Long: `Export writes every rule in the working copy to a YAML file, suitable
for review, version control, or importing into another machine.`,
		RunE: runRulesExport,
	}

	cmd.Flags().StringVarP(&exportOutput, "output", "o", "rules.yaml", "Output file path")

	return cmd
}

func runRulesExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	doc := ruleExport{Rules: manager.Rules()}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d rules to %s", len(doc.Rules), exportOutput))) //nolint:forbidigo // User-facing output
	return nil
}
