package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
	"github.com/praxical/rulesync/internal/common"
	"github.com/praxical/rulesync/internal/model"
)

func rulesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <rule-id> <file>",
		Short: "Try a rule's patterns against a source file",
		Long: `Check runs a rule's anti-patterns and good-patterns against a local
source file. This helps verify that pattern edits behave as intended
before pushing them.

Examples:
  rulesync rules check pyguide.exceptions.4 handler.py`,
		Args: cobra.ExactArgs(2),
		RunE: runRulesCheck,
	}
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rule, ok := manager.GetRule(args[0])
	if !ok {
		return fmt.Errorf("rule %s not found", args[0])
	}
	if len(rule.AntiPatterns) == 0 && len(rule.GoodPatterns) == 0 {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Rule %s has no patterns to check.", rule.RuleID))) //nolint:forbidigo // User-facing output
		return nil
	}

	source, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	return reportPatternMatches(rule, string(source))
}

func reportPatternMatches(rule model.Rule, source string) error {
	violations, err := common.MatchAny(rule.AntiPatterns, source)
	if err != nil {
		return fmt.Errorf("anti-patterns of %s: %w", rule.RuleID, err)
	}
	compliant, err := common.MatchAny(rule.GoodPatterns, source)
	if err != nil {
		return fmt.Errorf("good-patterns of %s: %w", rule.RuleID, err)
	}

	if len(violations) == 0 && len(compliant) == 0 {
		fmt.Println(cli.FormatInfo("No patterns matched.")) //nolint:forbidigo // User-facing output
		return nil
	}

	for _, p := range violations {
		fmt.Println(cli.FormatError("violation: " + p)) //nolint:forbidigo // User-facing output
	}
	for _, p := range compliant {
		fmt.Println(cli.FormatSuccess("compliant: " + p)) //nolint:forbidigo // User-facing output
	}
	return nil
}
