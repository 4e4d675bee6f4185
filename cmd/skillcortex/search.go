package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillcortex/pkg/presenter"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed skills",
	Long: `Search skills by substring match against name, description, and body,
ranked by where the match was found. Results can be narrowed to skills
carrying all of the given tags.

Examples:
  skillcortex search kubernetes
  skillcortex search deploy --tag infra --tag production
  skillcortex search --tag security`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		filterTags, _ := cmd.Flags().GetStringSlice("tag")

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if _, err := rt.store.Load(ctx); err != nil {
			return err
		}

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		results := rt.engine.Search(query, filterTags)
		if len(results) == 0 {
			presenter.Info("No skills matched")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTAGS\tDESCRIPTION")
		for _, s := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, strings.Join(s.Tags, ","), s.Description)
		}
		return w.Flush()
	},
}

func init() {
	searchCmd.Flags().StringSlice("tag", nil, "Require this tag on every result (repeatable)")
	rootCmd.AddCommand(searchCmd)
}
