package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local sync state",
		Long:  `Status reports the local working copy: counts, base version, and when data last moved in either direction. No network calls are made.`,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	status := manager.Status()

	fmt.Println(cli.FormatTitle("Sync Status"))                          //nolint:forbidigo // User-facing output
	fmt.Printf("  Base version:  %s\n", formatVersion(status.BaseVersion)) //nolint:forbidigo // User-facing output
	fmt.Printf("  Last pull:     %s\n", formatTimestamp(status.LastPullAt)) //nolint:forbidigo // User-facing output
	fmt.Printf("  Last push:     %s\n", formatTimestamp(status.LastPushAt)) //nolint:forbidigo // User-facing output
	fmt.Printf("  Rules:         %d\n", status.RuleCount)                //nolint:forbidigo // User-facing output
	fmt.Printf("  Tags:          %d\n", status.TagCount)                 //nolint:forbidigo // User-facing output
	fmt.Printf("  Compound tags: %d\n", status.CompoundCount)            //nolint:forbidigo // User-facing output

	if status.PendingPersists > 0 {
		fmt.Printf("  Pending writes: %d\n", status.PendingPersists) //nolint:forbidigo // User-facing output
	}

	if status.BaseVersion == nil {
		fmt.Println() //nolint:forbidigo // User-facing output
		fmt.Println(cli.FormatInfo("No baseline yet. Run 'rulesync pull' to fetch the server state.")) //nolint:forbidigo // User-facing output
	}
	if status.LastError != "" {
		fmt.Println() //nolint:forbidigo // User-facing output
		fmt.Println(cli.FormatWarning("Last sync error: " + status.LastError)) //nolint:forbidigo // User-facing output
	}

	return nil
}
