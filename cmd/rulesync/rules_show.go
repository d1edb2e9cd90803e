package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
	"github.com/praxical/rulesync/internal/model"
)

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show a single rule in full",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesShow,
	}
}

func runRulesShow(cmd *cobra.Command, args []string) error {
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

	fmt.Println(formatRuleDetail(rule)) //nolint:forbidigo // User-facing output
	return nil
}

func formatRuleDetail(rule model.Rule) string {
	var b strings.Builder

	b.WriteString(cli.FormatTitle(rule.RuleID) + "\n")
	writeField(&b, "Title", rule.Title)
	writeField(&b, "Category", rule.Category)
	writeField(&b, "Severity", rule.Severity)
	writeField(&b, "Check type", rule.CheckType)
	writeField(&b, "Status", formatActive(rule.IsActive))
	writeField(&b, "Description", rule.Description)
	writeField(&b, "Message", rule.Message)
	writeField(&b, "Suggestion", rule.Suggestion)
	writeField(&b, "Tag condition", rule.TagCondition)
	writeField(&b, "Source doc", rule.SourceDoc)
	writeListField(&b, "Required tags", rule.RequiredTags)
	writeListField(&b, "Excluded tags", rule.ExcludedTags)
	writeListField(&b, "Anti-patterns", rule.AntiPatterns)
	writeListField(&b, "Good patterns", rule.GoodPatterns)

	return strings.TrimRight(b.String(), "\n")
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s %s\n", cli.BoldStyle.Render(label+":"), value)
}

func writeListField(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s\n", cli.BoldStyle.Render(label+":"))
	for _, v := range values {
		fmt.Fprintf(b, "    • %s\n", v)
	}
}
