package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/datasift-cli/internal/config"
	"github.com/KaramelBytes/datasift-cli/internal/logging"
)

var (
	// Global flags
	cfgFile      string
	debug        bool
	flagLogLevel string
	flagLogFmt   string

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "datasift",
	Short: "DataSift CLI: load, filter, aggregate and export tabular datasets",
	Long: `DataSift loads CSV/TSV/XLSX sources, resolves their columns against a dataset profile,
and lets you filter, aggregate, summarize and export the result from the shell or over HTTP.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.datasift/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFmt, "log-format", "", "log format: text|json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{}
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = flagLogFmt
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	l, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: os.Stderr, AddSource: debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; using defaults\n", err)
		l, _ = logging.New(logging.Options{})
	}
	logger = l
	slog.SetDefault(logger)
}

// config returns the loaded configuration, loading it on first use.
func config() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}
