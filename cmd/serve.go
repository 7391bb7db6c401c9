package cmd

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the generation workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.Cfg.HTTPAddr = addr
		}
		a.Log.Info("starting opoplan", "version", version, "addr", a.Cfg.HTTPAddr, "workers", a.Cfg.Workers)
		return a.Serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides OPOPLAN_HTTP_ADDR)")
}
