package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
)

var resetForce bool

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard all local state",
		Long: `Reset deletes the local working copy, the pristine baseline, and all sync
metadata. The server is not contacted.

Run 'rulesync pull' afterwards to start from the current server state.`,
		RunE: runReset,
	}

	cmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if !resetForce {
		prompter := cli.NewPrompter(nil, nil)
		confirmed, err := prompter.ConfirmReset(ctx)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println(cli.FormatInfo("Reset canceled.")) //nolint:forbidigo // User-facing output
			return nil
		}
	}

	if err := manager.Reset(ctx); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess("Local state cleared. Run 'rulesync pull' to fetch the server state.")) //nolint:forbidigo // User-facing output
	return nil
}
