package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillcortex/pkg/httpapi"
	"github.com/jingkaihe/skillcortex/pkg/logger"
	"github.com/jingkaihe/skillcortex/pkg/presenter"
)

var httpdCmd = &cobra.Command{
	Use:   "httpd",
	Short: "Start the read-only HTTP API server",
	Long: `Start an HTTP server exposing the skill index: tree, search, skill
details, tag listing, and rebuild. The server runs until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if _, err := rt.store.Load(ctx); err != nil {
			logger.G(ctx).WithError(err).Warn("initial index build reported errors, serving anyway")
		}

		addr := viper.GetString("http.addr")
		srv := httpapi.NewServer(addr, rt.store, rt.engine, rt.registry)

		presenter.Success("HTTP API server starting")
		presenter.Info("Listening on http://" + addr)
		presenter.Info("Press Ctrl+C to stop the server")

		return srv.Start(ctx)
	},
}

func init() {
	httpdCmd.Flags().String("addr", "", "Listen address (host:port)")
	viper.BindPFlag("http.addr", httpdCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(httpdCmd)
}
