package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/hourlens/internal/analysis"
	"github.com/KaramelBytes/hourlens/internal/server"
)

var (
	srvFlags     analysisFlags
	srvAddr      string
	srvMaxUpload int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis engine over HTTP (POST /v1/analyze)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, opt, err := srvFlags.build(cmd)
		if err != nil {
			return err
		}
		c := config()
		addr := c.ServerAddr
		if cmd.Flags().Changed("addr") || addr == "" {
			addr = srvAddr
		}
		maxMB := c.MaxUploadMB
		if cmd.Flags().Changed("max-upload-mb") {
			maxMB = srvMaxUpload
		}

		s := server.New(analysis.NewEngine(log), log, server.Settings{
			Request:        req,
			Read:           opt,
			MaxUploadBytes: int64(maxMB) << 20,
		})
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return s.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	srvFlags.register(serveCmd.Flags())
	serveCmd.Flags().StringVar(&srvAddr, "addr", ":8080", "listen address (overrides config server_addr)")
	serveCmd.Flags().IntVar(&srvMaxUpload, "max-upload-mb", 32, "maximum upload size in MiB (overrides config)")
}
