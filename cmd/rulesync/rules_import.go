package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/praxical/rulesync/internal/cli"
	"github.com/praxical/rulesync/internal/model"
	"github.com/praxical/rulesync/internal/syncer"
)

var importReplace bool

func rulesImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load rules from a YAML file into the working copy",
		Long: `Import reads rules from a YAML file written by 'rulesync rules export'.

By default rules with unknown IDs are added and rules whose ID already
exists in the working copy are skipped. With --replace, existing rules are
overwritten by the imported versions instead. Rules absent from the file
are never touched; deletion stays explicit.`,
		Args: cobra.ExactArgs(1),
		RunE: runRulesImport,
	}

	cmd.Flags().BoolVar(&importReplace, "replace", false, "Overwrite existing rules with the imported versions")

	return cmd
}

// importCounts summarizes what a merge did.
type importCounts struct {
	added   int
	updated int
	skipped int
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	var doc ruleExport
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}
	if len(doc.Rules) == 0 {
		return fmt.Errorf("%s contains no rules", args[0])
	}

	// Validate everything up front so a bad file changes nothing
	if err := validateImport(doc.Rules); err != nil {
		return err
	}

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	counts, err := mergeImportedRules(manager, doc.Rules, importReplace)
	if err != nil {
		return err
	}

	if err := manager.PersistCurrent(ctx); err != nil {
		return fmt.Errorf("rules imported but not persisted: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d rules: %d added, %d updated, %d skipped", //nolint:forbidigo // User-facing output
		len(doc.Rules), counts.added, counts.updated, counts.skipped)))
	return nil
}

// validateImport checks every rule and rejects duplicate IDs within the
// file itself; a duplicate would make AddRule fail halfway through the
// merge after earlier rules had already landed.
func validateImport(rules []model.Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
		if _, dup := seen[rules[i].RuleID]; dup {
			return fmt.Errorf("duplicate rule %s in import file", rules[i].RuleID)
		}
		seen[rules[i].RuleID] = struct{}{}
	}
	return nil
}

func mergeImportedRules(manager *syncer.Manager, rules []model.Rule, replace bool) (importCounts, error) {
	var counts importCounts
	for _, rule := range rules {
		if _, exists := manager.GetRule(rule.RuleID); exists {
			if !replace {
				counts.skipped++
				continue
			}
			manager.UpdateRule(rule.RuleID, fullPatch(rule))
			counts.updated++
			continue
		}
		if err := manager.AddRule(rule); err != nil {
			return counts, fmt.Errorf("failed to add rule %s: %w", rule.RuleID, err)
		}
		counts.added++
	}
	return counts, nil
}

// fullPatch converts a complete rule into a patch touching every field.
func fullPatch(rule model.Rule) model.RulePatch {
	return model.RulePatch{
		Category:     &rule.Category,
		Severity:     &rule.Severity,
		CheckType:    &rule.CheckType,
		Title:        &rule.Title,
		Description:  &rule.Description,
		Message:      &rule.Message,
		Suggestion:   &rule.Suggestion,
		TagCondition: &rule.TagCondition,
		SourceDoc:    &rule.SourceDoc,
		RequiredTags: &rule.RequiredTags,
		ExcludedTags: &rule.ExcludedTags,
		AntiPatterns: &rule.AntiPatterns,
		GoodPatterns: &rule.GoodPatterns,
		IsActive:     &rule.IsActive,
	}
}
