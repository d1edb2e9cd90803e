package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/praxical/rulesync/internal/cli"
	"github.com/praxical/rulesync/internal/model"
)

func tagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Inspect and replace the local tag definitions",
		Long: `Tags are replaced as a whole, never patched field by field. Use
'rulesync tags show' to inspect the working copy and 'rulesync tags replace'
to swap in a new aggregate from a YAML file.`,
	}

	cmd.AddCommand(tagsShowCmd())
	cmd.AddCommand(tagsReplaceCmd())

	return cmd
}

func tagsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the working tag definitions",
		RunE:  runTagsShow,
	}
}

func runTagsShow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	tags := manager.Tags()
	if tags.TagCount() == 0 && tags.CompoundCount() == 0 {
		fmt.Println(cli.InfoStyle.Render("No tag definitions. Run 'rulesync pull' to fetch them.")) //nolint:forbidigo // User-facing output
		return nil
	}

	fmt.Println(cli.FormatTitle("Tag Definitions")) //nolint:forbidigo // User-facing output

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() {
		if flushErr := w.Flush(); flushErr != nil {
			slog.Error("failed to flush table writer", "error", flushErr)
		}
	}()

	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n",
		cli.HeaderStyle.Render("Tag"),
		cli.HeaderStyle.Render("Tier"),
		cli.HeaderStyle.Render("Detection")); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, name := range sortedTagNames(tags.Tags) {
		def := tags.Tags[name]
		if _, err := fmt.Fprintf(w, "%s\t%d\t%s\n", name, def.Tier, def.Detection.Kind); err != nil {
			return fmt.Errorf("failed to write tag row: %w", err)
		}
	}

	if tags.CompoundCount() > 0 {
		if _, err := fmt.Fprintf(w, "\n%s\t\t\n", cli.HeaderStyle.Render("Compound tags")); err != nil {
			return fmt.Errorf("failed to write compound header: %w", err)
		}
		names := make([]string, 0, len(tags.CompoundTags))
		for name := range tags.CompoundTags {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			compound := tags.CompoundTags[name]
			if _, err := fmt.Fprintf(w, "%s\t\t%s\n", name, describeCompound(compound)); err != nil {
				return fmt.Errorf("failed to write compound row: %w", err)
			}
		}
	}

	return nil
}

func tagsReplaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replace <file>",
		Short: "Replace the working tag definitions from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runTagsReplace,
	}
}

func runTagsReplace(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	var tags model.TagData
	if err := yaml.Unmarshal(data, &tags); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	manager, cleanup, err := initManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := manager.ReplaceTags(tags); err != nil {
		return fmt.Errorf("tag data rejected: %w", err)
	}
	if err := manager.PersistCurrent(ctx); err != nil {
		return fmt.Errorf("tags replaced but not persisted: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Replaced tag definitions: %d tags, %d compound", //nolint:forbidigo // User-facing output
		tags.TagCount(), tags.CompoundCount())))
	return nil
}

func sortedTagNames(tags map[string]model.TagDef) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func describeCompound(c model.CompoundTag) string {
	if c.Expression != "" {
		return c.Expression
	}
	return fmt.Sprintf("requires %v, excludes %v", c.RequiredTags, c.ExcludedTags)
}
