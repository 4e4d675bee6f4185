// Command skillcortex indexes SKILL.md documents under configured
// roots and exposes them to agents over MCP stdio, an HTTP API, and
// the CLI subcommands below.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillcortex/pkg/config"
	"github.com/jingkaihe/skillcortex/pkg/logger"
	"github.com/jingkaihe/skillcortex/pkg/presenter"
)

func init() {
	config.Init()
}

var rootCmd = &cobra.Command{
	Use:   "skillcortex",
	Short: "Skill index engine for agent skill libraries",
	Long: `Skillcortex scans directories of SKILL.md documents, maintains an
incrementally rebuilt in-memory index backed by a persistent cache, and
serves tree, search, and detail queries over MCP stdio, HTTP, and the CLI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return err
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	rootCmd.PersistentFlags().StringSlice("root", nil, "Skill root directory (repeatable, earlier roots win duplicates)")
	rootCmd.PersistentFlags().String("cache", "", "Path to the persistent index cache")
	rootCmd.PersistentFlags().String("cache-backend", "", "Cache backend to use (json or sqlite)")
	rootCmd.PersistentFlags().String("tags-file", "", "Path to the allowed tags file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json, text)")

	viper.BindPFlag("roots", rootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("cache_path", rootCmd.PersistentFlags().Lookup("cache"))
	viper.BindPFlag("cache_backend", rootCmd.PersistentFlags().Lookup("cache-backend"))
	viper.BindPFlag("tags_path", rootCmd.PersistentFlags().Lookup("tags-file"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := initTracing(ctx)
	if err != nil {
		presenter.Warning(fmt.Sprintf("Failed to initialize tracing: %v", err))
	} else {
		defer shutdownTracing(context.Background())
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
