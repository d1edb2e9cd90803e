package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
)

func pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch the full rule and tag state from the server",
		Long: `Pull downloads the complete set of rules and tags from the admin console
and replaces the local working copy.

The pulled state becomes the new pristine baseline, so any local edits made
since the last pull are discarded.`,
		RunE: runPull,
	}
}

func runPull(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	prompter := cli.NewPrompter(nil, nil)
	spinner := prompter.NewSpinner("Pulling from server...")

	result, err := manager.Pull(ctx)
	if finishErr := spinner.Finish(); finishErr != nil {
		slog.Debug("failed to finish spinner", "error", finishErr)
	}
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Pulled version %d", result.Version))) //nolint:forbidigo // User-facing output
	fmt.Printf("  Rules:         %d\n", result.Metadata.RuleCount)                   //nolint:forbidigo // User-facing output
	fmt.Printf("  Tags:          %d\n", result.Metadata.TagCount)                    //nolint:forbidigo // User-facing output
	fmt.Printf("  Compound tags: %d\n", result.Metadata.CompoundTagCount)            //nolint:forbidigo // User-facing output

	return nil
}
