package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillcortex/pkg/presenter"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

var showCmd = &cobra.Command{
	Use:   "show <skill-id>",
	Short: "Show the full details of one skill",
	Long: `Print the complete record of an indexed skill: metadata, tags, tag
issues, and the instruction body.

Example:
  skillcortex show engineering/backend/deploy-service`,
	Args: cobra.ExactArgs(1),
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

		entry, err := rt.engine.Details(args[0])
		if err != nil {
			if skilltypes.IsNotFound(err) {
				presenter.Error(err, "skill not found")
				os.Exit(1)
			}
			return err
		}

		presenter.Section(entry.Name)
		fmt.Printf("ID:          %s\n", entry.ID)
		fmt.Printf("Path:        %s\n", entry.SkillFile())
		fmt.Printf("Description: %s\n", entry.Description)
		if len(entry.Tags) > 0 {
			fmt.Printf("Tags:        %s\n", strings.Join(entry.Tags, ", "))
		}
		for _, issue := range entry.TagIssues {
			presenter.Warning("Tag issue: " + issue)
		}
		if entry.Body != "" {
			fmt.Println()
			fmt.Println(entry.Body)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
