package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
	"github.com/praxical/rulesync/internal/service"
)

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Compare the local working copy against the server",
		Long: `Diff shows what would change if the current local state were pushed:
rules and tags added, modified, or deleted relative to the server.

The comparison is always shown, even when the server has moved ahead of
your last pull; in that case a conflict warning is included.`,
		RunE: runDiff,
	}
}

func runDiff(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := manager.Diff(ctx)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	if result.HasConflict {
		fmt.Println(cli.FormatConflict(result.BaseVersion, result.CurrentVersion)) //nolint:forbidigo // User-facing output
		fmt.Println()                                                              //nolint:forbidigo // User-facing output
	}

	fmt.Println(cli.FormatTitle("Local changes vs server")) //nolint:forbidigo // User-facing output
	printChangeSummary("Rules", result.Rules.Summary)
	printChangeSummary("Tags", result.Tags.Summary)

	if hasRuleChanges(result.Rules) {
		fmt.Println() //nolint:forbidigo // User-facing output
		if err := printRuleChanges(result.Rules); err != nil {
			return err
		}
	}
	if hasTagChanges(result.Tags) {
		fmt.Println() //nolint:forbidigo // User-facing output
		printTagChanges(result.Tags)
	}

	if !hasRuleChanges(result.Rules) && !hasTagChanges(result.Tags) {
		fmt.Println(cli.FormatInfo("Local state matches the server.")) //nolint:forbidigo // User-facing output
	}

	return nil
}

func hasRuleChanges(c service.RuleChanges) bool {
	return c.Summary.Added+c.Summary.Modified+c.Summary.Deleted > 0
}

func hasTagChanges(c service.TagChanges) bool {
	return c.Summary.Added+c.Summary.Modified+c.Summary.Deleted > 0
}

func printChangeSummary(label string, s service.ChangeSummary) {
	fmt.Printf("  %s: %d added, %d modified, %d deleted, %d unchanged\n", //nolint:forbidigo // User-facing output
		label, s.Added, s.Modified, s.Deleted, s.Unchanged)
}

func printRuleChanges(c service.RuleChanges) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() {
		if flushErr := w.Flush(); flushErr != nil {
			slog.Error("failed to flush table writer", "error", flushErr)
		}
	}()

	rows := make([]string, 0, len(c.Added)+len(c.Modified)+len(c.Deleted))
	for _, r := range c.Added {
		rows = append(rows, fmt.Sprintf("  %s\t%s\t%s", cli.SuccessStyle.Render("+ "+r.RuleID), r.Severity, r.Title))
	}
	for _, r := range c.Modified {
		rows = append(rows, fmt.Sprintf("  %s\t%s\t%s", cli.WarningStyle.Render("~ "+r.RuleID), r.Severity, r.Title))
	}
	for _, r := range c.Deleted {
		rows = append(rows, fmt.Sprintf("  %s\t%s\t%s", cli.ErrorStyle.Render("- "+r.RuleID), r.Severity, r.Title))
	}

	for _, row := range rows {
		if _, err := fmt.Fprintln(w, row); err != nil {
			return fmt.Errorf("failed to write diff row: %w", err)
		}
	}
	return nil
}

func printTagChanges(c service.TagChanges) {
	for _, name := range c.Added {
		fmt.Println("  " + cli.SuccessStyle.Render("+ "+name)) //nolint:forbidigo // User-facing output
	}
	for _, name := range c.Modified {
		fmt.Println("  " + cli.WarningStyle.Render("~ "+name)) //nolint:forbidigo // User-facing output
	}
	for _, name := range c.Deleted {
		fmt.Println("  " + cli.ErrorStyle.Render("- "+name)) //nolint:forbidigo // User-facing output
	}
}
