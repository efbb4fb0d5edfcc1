package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/hourlens/internal/config"
	"github.com/KaramelBytes/hourlens/internal/logger"
)

var (
	// Global flags
	cfgFile       string
	debug         bool
	flagLogFormat string

	// Loaded configuration and logger
	cfg *cfgpkg.Global
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "hourlens",
	Short: "Hourlens: hour-of-day profiles and correlation rankings for tabular data",
	Long: `Hourlens reads CSV/TSV/XLSX tables, infers which columns carry time, group and
metric roles, and reports 24-hour profiles, time-window statistics, peaks and
correlation rankings. Wide tables with one column per hour are reshaped
automatically.`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.hourlens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log encoding: console|json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{}
	}
	cfg = c

	lc := logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogFormat}
	if rootCmd.PersistentFlags().Changed("log-format") {
		lc.Encoding = flagLogFormat
	}
	if debug {
		lc.Level = "debug"
		lc.Development = true
	}
	l, err := logger.New(lc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; logging disabled\n", err)
		return
	}
	log = l
}

// config returns the loaded configuration, loading it if a command runs
// without the cobra initializer (tests).
func config() *cfgpkg.Global {
	if cfg == nil {
		loadConfig()
	}
	return cfg
}
