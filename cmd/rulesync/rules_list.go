package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
	"github.com/praxical/rulesync/internal/model"
)

var (
	rulesListCategory string
	rulesListSeverity string
	rulesListAll      bool
)

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in the working copy",
		RunE:  runRulesList,
	}

	cmd.Flags().StringVar(&rulesListCategory, "category", "", "Only rules in this category")
	cmd.Flags().StringVar(&rulesListSeverity, "severity", "", "Only rules with this severity")
	cmd.Flags().BoolVar(&rulesListAll, "all", false, "Include inactive rules")

	return cmd
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rules := filterRules(manager.Rules(), rulesListCategory, rulesListSeverity, rulesListAll)
	if len(rules) == 0 {
		fmt.Println(cli.InfoStyle.Render("No rules found. Run 'rulesync pull' or 'rulesync rules add'.")) //nolint:forbidigo // User-facing output
		return nil
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].RuleID < rules[j].RuleID
	})

	fmt.Println(cli.FormatTitle("Rules")) //nolint:forbidigo // User-facing output

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() {
		if flushErr := w.Flush(); flushErr != nil {
			slog.Error("failed to flush table writer", "error", flushErr)
		}
	}()

	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		cli.HeaderStyle.Render("ID"),
		cli.HeaderStyle.Render("Severity"),
		cli.HeaderStyle.Render("Category"),
		cli.HeaderStyle.Render("Status"),
		cli.HeaderStyle.Render("Title")); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := fmt.Fprintln(w, cli.TableSeparator(12, 8, 12, 8, 30)); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}

	for _, rule := range rules {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rule.RuleID,
			formatSeverity(rule.Severity),
			rule.Category,
			formatActive(rule.IsActive),
			rule.Title); err != nil {
			return fmt.Errorf("failed to write rule row: %w", err)
		}
	}

	return nil
}

func filterRules(rules []model.Rule, category, severity string, includeInactive bool) []model.Rule {
	out := make([]model.Rule, 0, len(rules))
	for _, rule := range rules {
		if category != "" && !strings.EqualFold(rule.Category, category) {
			continue
		}
		if severity != "" && !strings.EqualFold(rule.Severity, severity) {
			continue
		}
		if !includeInactive && !rule.IsActive {
			continue
		}
		out = append(out, rule)
	}
	return out
}

func formatSeverity(severity string) string {
	switch severity {
	case model.SeverityError:
		return cli.ErrorStyle.Render(severity)
	case model.SeverityWarning:
		return cli.WarningStyle.Render(severity)
	case model.SeverityInfo:
		return cli.InfoStyle.Render(severity)
	default:
		return severity
	}
}
