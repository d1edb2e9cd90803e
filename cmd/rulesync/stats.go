package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show server-side rule and tag statistics",
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := initRemote()
	if err != nil {
		return err
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}

	fmt.Println(cli.FormatTitle("Server Statistics"))          //nolint:forbidigo // User-facing output
	fmt.Printf("  Rules:         %d\n", stats.RuleCount)       //nolint:forbidigo // User-facing output
	fmt.Printf("  Tags:          %d\n", stats.TagCount)        //nolint:forbidigo // User-facing output
	fmt.Printf("  Compound tags: %d\n", stats.CompoundCount)   //nolint:forbidigo // User-facing output

	if len(stats.Categories) > 0 {
		fmt.Println() //nolint:forbidigo // User-facing output
		fmt.Println(cli.BoldStyle.Render("  Rules by category:")) //nolint:forbidigo // User-facing output
		if err := printCountTable(stats.Categories); err != nil {
			return err
		}
	}
	if len(stats.RuleStatus) > 0 {
		fmt.Println() //nolint:forbidigo // User-facing output
		fmt.Println(cli.BoldStyle.Render("  Rules by status:")) //nolint:forbidigo // User-facing output
		if err := printCountTable(stats.RuleStatus); err != nil {
			return err
		}
	}

	return nil
}

func printCountTable(counts map[string]int) error {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() {
		if flushErr := w.Flush(); flushErr != nil {
			slog.Error("failed to flush table writer", "error", flushErr)
		}
	}()

	for _, name := range names {
		if _, err := fmt.Fprintf(w, "    %s\t%d\n", name, counts[name]); err != nil {
			return fmt.Errorf("failed to write stats row: %w", err)
		}
	}
	return nil
}
