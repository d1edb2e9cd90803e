package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
	"github.com/praxical/rulesync/internal/syncer"
)

var (
	pushForce bool
	pushYes   bool
)

func pushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload the local working copy to the server",
		Long: `Push uploads the complete local rule and tag state to the admin console.

The server rejects the push when its data has advanced past your last pull.
Use --force to overwrite the server anyway; the server keeps a backup of
the state it replaces.`,
		RunE: runPush,
	}

	cmd.Flags().BoolVarP(&pushForce, "force", "f", false, "Overwrite the server even if it has newer data")
	cmd.Flags().BoolVarP(&pushYes, "yes", "y", false, "Skip the force-push confirmation prompt")

	return cmd
}

func runPush(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	prompter := cli.NewPrompter(nil, nil)

	// A force push against a known conflict deserves an explicit warning
	// before any data leaves the machine.
	if pushForce && !pushYes {
		confirmed, err := confirmForcePush(cmd, manager, prompter)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println(cli.FormatInfo("Push canceled.")) //nolint:forbidigo // User-facing output
			return nil
		}
	}

	spinner := prompter.NewSpinner("Pushing to server...")
	outcome, err := manager.Push(ctx, pushForce)
	if finishErr := spinner.Finish(); finishErr != nil {
		slog.Debug("failed to finish spinner", "error", finishErr)
	}
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	if outcome.Conflict != nil {
		decision := syncer.Evaluate(&outcome.Conflict.BaseVersion, outcome.Conflict.CurrentVersion)
		fmt.Println(cli.FormatConflict(outcome.Conflict.BaseVersion, outcome.Conflict.CurrentVersion)) //nolint:forbidigo // User-facing output
		fmt.Println(cli.FormatWarning(decision.Guidance))                                              //nolint:forbidigo // User-facing output
		return fmt.Errorf("push rejected: %s", outcome.Conflict.Message)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Pushed version %d", outcome.NewVersion))) //nolint:forbidigo // User-facing output
	fmt.Printf("  Rules applied: %d/%d\n", outcome.Stats.RulesSuccess, outcome.Stats.RulesTotal) //nolint:forbidigo // User-facing output
	if outcome.Stats.RulesFailed > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d rules failed server-side validation", outcome.Stats.RulesFailed))) //nolint:forbidigo // User-facing output
	}
	if outcome.BackupPath != "" {
		fmt.Printf("  Server backup: %s\n", outcome.BackupPath) //nolint:forbidigo // User-facing output
	}

	return nil
}

// confirmForcePush checks the server's current version so the prompt can
// show exactly what would be overwritten. When the server is unreachable
// or not actually ahead, a plain confirmation suffices.
func confirmForcePush(cmd *cobra.Command, manager *syncer.Manager, prompter *cli.Prompter) (bool, error) {
	ctx := cmd.Context()
	base := manager.BaseVersion()

	diff, err := manager.Diff(ctx)
	if err != nil || !diff.HasConflict {
		return prompter.Confirm(ctx, "Force push local state to the server?")
	}

	var baseVersion int64
	if base != nil {
		baseVersion = *base
	}
	return prompter.ConfirmForcePush(ctx, baseVersion, diff.CurrentVersion)
}
