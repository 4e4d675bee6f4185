package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillcortex/pkg/index"
	"github.com/jingkaihe/skillcortex/pkg/presenter"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage the allowed tag vocabulary",
	Long: `List, add, and remove allowed tags, report skills whose tags are
missing or unregistered, and apply new tag sets to skills.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List allowed tags",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		entries := rt.registry.List()
		if len(entries) == 0 {
			presenter.Info("No tags registered (" + rt.registry.Path() + ")")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TAG\tDESCRIPTION")
		for _, tag := range entries {
			fmt.Fprintf(w, "%s\t%s\n", tag.Name, tag.Description)
		}
		return w.Flush()
	},
}

var tagsAddCmd = &cobra.Command{
	Use:   "add <name> <description>",
	Short: "Register an allowed tag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.registry.Add(args[0], args[1]); err != nil {
			return err
		}
		presenter.Success("Added tag " + args[0])
		return nil
	},
}

var tagsUpdateCmd = &cobra.Command{
	Use:   "update <name> <description>",
	Short: "Change the description of an allowed tag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.registry.Update(args[0], args[1]); err != nil {
			return err
		}
		presenter.Success("Updated tag " + args[0])
		return nil
	},
}

var tagsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a tag from the allowed vocabulary",
	Long: `Remove a tag from the allowed vocabulary. Skills still carrying the
tag keep it; they show up under "tags issues" until retagged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.registry.Remove(args[0]); err != nil {
			return err
		}
		presenter.Success("Removed tag " + args[0])
		return nil
	},
}

var tagsIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List skills with missing or unregistered tags",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if _, err := rt.store.Load(ctx); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		count := 0
		for _, entry := range rt.store.Snapshot().Valid() {
			if len(entry.TagIssues) == 0 {
				continue
			}
			if count == 0 {
				fmt.Fprintln(w, "SKILL\tISSUES")
			}
			fmt.Fprintf(w, "%s\t%s\n", entry.ID, strings.Join(entry.TagIssues, "; "))
			count++
		}
		if count == 0 {
			presenter.Success("All skills have registered tags")
			return nil
		}
		return w.Flush()
	},
}

var tagsApplyCmd = &cobra.Command{
	Use:   "apply <skill-id> <tag>...",
	Short: "Replace the tag set of a skill",
	Long: `Replace a skill's tags by rewriting the tags line of its SKILL.md
frontmatter and updating the index in place. Unregistered tags are
applied but reported.

Example:
  skillcortex tags apply engineering/backend/deploy-service infra production`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if _, err := rt.store.Load(ctx); err != nil {
			return err
		}

		results, err := rt.store.ApplyTags(ctx, []index.TagUpdate{
			{SkillID: args[0], Tags: args[1:]},
		})
		for _, result := range results {
			if result.Error != "" {
				continue
			}
			presenter.Success(fmt.Sprintf("Tagged %s: %s", result.SkillID, strings.Join(result.Tags, ", ")))
			if len(result.Unknown) > 0 {
				presenter.Warning("Unregistered tags applied: " + strings.Join(result.Unknown, ", "))
			}
		}
		return err
	},
}

func init() {
	tagsCmd.AddCommand(tagsListCmd)
	tagsCmd.AddCommand(tagsAddCmd)
	tagsCmd.AddCommand(tagsUpdateCmd)
	tagsCmd.AddCommand(tagsRemoveCmd)
	tagsCmd.AddCommand(tagsIssuesCmd)
	tagsCmd.AddCommand(tagsApplyCmd)
	rootCmd.AddCommand(tagsCmd)
}
