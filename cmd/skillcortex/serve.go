package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillcortex/pkg/logger"
	"github.com/jingkaihe/skillcortex/pkg/mcpserver"
	"github.com/jingkaihe/skillcortex/pkg/presenter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start an MCP (Model Context Protocol) server that communicates over
stdin/stdout. Agents connect to it to rebuild the index, browse the skill
tree, search, fetch skill details, and manage tags.

Logs go to stderr so stdout stays a clean JSON-RPC channel.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		// stdout carries the MCP protocol; everything else goes to stderr.
		logger.SetLogOutput(os.Stderr)
		presenter.SetQuiet(true)

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if _, err := rt.store.Load(ctx); err != nil {
			logger.G(ctx).WithError(err).Warn("initial index build reported errors, serving anyway")
		}

		srv := mcpserver.New(rt.store, rt.engine, rt.registry)
		logger.G(ctx).WithField("roots", rt.config.Roots).Info("starting MCP server on stdio")
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
