package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praxical/rulesync/internal/cli"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the server is reachable",
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := initRemote()
	if err != nil {
		return err
	}

	health, err := client.Health(ctx)
	if err != nil {
		fmt.Println(cli.FormatError("Server is unreachable")) //nolint:forbidigo // User-facing output
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Server is %s (version %s)", health.Status, health.Version))) //nolint:forbidigo // User-facing output
	return nil
}
