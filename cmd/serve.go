package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datasift-cli/internal/logging"
	"github.com/KaramelBytes/datasift-cli/internal/pipeline"
	"github.com/KaramelBytes/datasift-cli/internal/server"
)

var (
	srvAddr       string
	srvAllowPaths bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API (upload, filter, aggregate, charts, report, export)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		addr := c.ServerAddr
		if cmd.Flags().Changed("addr") {
			addr = srvAddr
		}
		format := c.LogFormat
		if !rootCmd.PersistentFlags().Changed("log-format") && format == "text" {
			format = "json"
		}
		log, err := logging.New(logging.Options{Level: c.LogLevel, Format: format, Writer: os.Stderr})
		if err != nil {
			return err
		}
		srv := server.New(server.Options{
			Addr:           addr,
			RateLimit:      c.ServerRateLimit,
			RateBurst:      c.ServerRateBurst,
			MaxUploadBytes: int64(c.MaxUploadMB) << 20,
			CacheSize:      c.CacheSize,
			Loader:         c.LoaderOptions(),
			Pipeline: func(profile string) (pipeline.Options, error) {
				return c.PipelineOptions(profile)
			},
			ExportBOM:     c.ExportBOM,
			HistogramBins: c.HistogramBins,
			AllowPaths:    srvAllowPaths,
			Logger:        log,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving on http://%s (Ctrl+C to stop)\n", addr)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config server_addr)")
	serveCmd.Flags().BoolVar(&srvAllowPaths, "allow-paths", false, "allow POST /api/datasets to load files by server-side path")
}
