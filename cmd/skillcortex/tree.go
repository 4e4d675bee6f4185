package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Show the skill category tree",
	Long: `Print the hierarchical view of indexed skills, grouped by their
directory path under the skill roots. An optional path argument narrows
the output to one subtree.

Examples:
  skillcortex tree
  skillcortex tree engineering/backend`,
	Args: cobra.MaximumNArgs(1),
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

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		node := rt.engine.Tree(prefix)
		printTree(os.Stdout, node, 0)
		return nil
	},
}

func printTree(w io.Writer, node *skilltypes.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	name := node.Name
	if name == "" {
		name = "."
	}
	fmt.Fprintf(w, "%s%s/\n", indent, name)
	for _, s := range node.Skills {
		fmt.Fprintf(w, "%s  %s  %s\n", indent, s.Name, s.Description)
	}
	for _, child := range node.Children {
		printTree(w, child, depth+1)
	}
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
