package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
	"github.com/praxical/rulesync/internal/model"
)

var addRule model.Rule

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <rule-id>",
		Short: "Add a rule to the working copy",
		Long: `Add a new rule locally. The rule ID must have the form
<source>.<category>.<section>, for example pyguide.naming.3.

The rule reaches the server on the next push.`,
		Args: cobra.ExactArgs(1),
		RunE: runRulesAdd,
	}

	cmd.Flags().StringVar(&addRule.Title, "title", "", "Short rule title (required)")
	cmd.Flags().StringVar(&addRule.Category, "category", "", "Rule category")
	cmd.Flags().StringVar(&addRule.Severity, "severity", model.SeverityWarning, "Severity (error, warning, info)")
	cmd.Flags().StringVar(&addRule.CheckType, "check-type", "", "How the rule is checked")
	cmd.Flags().StringVar(&addRule.Description, "description", "", "What the rule enforces")
	cmd.Flags().StringVar(&addRule.Message, "message", "", "Message shown on violation")
	cmd.Flags().StringVar(&addRule.Suggestion, "suggestion", "", "Suggested fix")
	cmd.Flags().StringVar(&addRule.TagCondition, "tag-condition", "", "Tag expression gating the rule")
	cmd.Flags().StringSliceVar(&addRule.RequiredTags, "required-tag", nil, "Tag the file must carry (repeatable)")
	cmd.Flags().StringSliceVar(&addRule.ExcludedTags, "excluded-tag", nil, "Tag that disables the rule (repeatable)")
	cmd.Flags().StringSliceVar(&addRule.AntiPatterns, "anti-pattern", nil, "Regex that flags a violation (repeatable)")
	cmd.Flags().StringSliceVar(&addRule.GoodPatterns, "good-pattern", nil, "Regex that marks compliant code (repeatable)")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rule := addRule
	rule.RuleID = args[0]
	rule.IsActive = true

	if err := manager.AddRule(rule); err != nil {
		return err
	}
	if err := manager.PersistCurrent(ctx); err != nil {
		return fmt.Errorf("rule added but not persisted: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added rule %s", rule.RuleID))) //nolint:forbidigo // User-facing output
	if manager.BaseVersion() == nil {
		fmt.Println(cli.FormatWarning("No baseline yet: this edit lives in memory only until the first pull.")) //nolint:forbidigo // User-facing output
	}
	return nil
}
