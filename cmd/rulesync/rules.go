package main

import (
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the local rule working copy",
		Long: `Manage static-analysis rules in the local working copy.

Edits are local until pushed. Rules added, changed, or deleted here show up
in 'rulesync diff' and reach the server on the next 'rulesync push'.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesEditCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesCheckCmd())
	cmd.AddCommand(rulesExportCmd())
	cmd.AddCommand(rulesImportCmd())

	return cmd
}
