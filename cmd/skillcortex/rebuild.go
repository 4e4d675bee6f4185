package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillcortex/pkg/presenter"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the skill index",
	Long: `Scan the configured skill roots, reconcile the index against the
persistent cache, and report what changed. Unchanged skills are reused
from the cache; only new or modified SKILL.md files are reparsed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		stats, err := rt.store.Load(ctx)
		if stats != nil {
			presenter.Section("Rebuild " + stats.RunID)
			presenter.Info(fmt.Sprintf("Generation: %d", stats.Generation))
			presenter.Info(fmt.Sprintf("Scanned:    %d", stats.Scanned))
			presenter.Info(fmt.Sprintf("Reused:     %d", stats.Reused))
			presenter.Info(fmt.Sprintf("Reparsed:   %d", stats.Reparsed))
			presenter.Info(fmt.Sprintf("Dropped:    %d", stats.Dropped))
			presenter.Info(fmt.Sprintf("Invalid:    %d", stats.Invalid))
			presenter.Info(fmt.Sprintf("Duration:   %s", stats.Duration))
		}
		for _, problem := range rt.store.Snapshot().Problems() {
			presenter.Warning(fmt.Sprintf("%s: %s (%s)", problem.Kind, problem.Detail, problem.Path))
		}
		if err != nil {
			presenter.Error(err, "rebuild completed with errors")
			return err
		}
		presenter.Success(fmt.Sprintf("Index rebuilt: %d skills", rt.store.Snapshot().Len()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
