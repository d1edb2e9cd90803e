package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
)

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Remove a rule from the working copy",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesDelete,
	}
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ruleID := args[0]
	if _, ok := manager.GetRule(ruleID); !ok {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Rule %s not present; nothing to delete.", ruleID))) //nolint:forbidigo // User-facing output
		return nil
	}

	manager.DeleteRule(ruleID)
	if err := manager.PersistCurrent(ctx); err != nil {
		return fmt.Errorf("rule deleted but not persisted: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted rule %s", ruleID))) //nolint:forbidigo // User-facing output
	return nil
}
