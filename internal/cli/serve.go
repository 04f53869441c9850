package cli

import (
	"github.com/spf13/cobra"

	"budgetwatch/internal/app"
)

var (
	serveAddr      string
	serveScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reports and alert management over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), app.ServeOptions{
			Addr:          serveAddr,
			WithScheduler: serveScheduler,
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr)")
	serveCmd.Flags().BoolVar(&serveScheduler, "with-scheduler", false, "Also run the periodic evaluation loop")
}
