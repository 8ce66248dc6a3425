package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/msdrg/internal/config"
)

var (
	cfg        = config.Default()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "drggroup",
	Short: "MS-DRG v43.0 grouper",
	Long: "Builds the MS-DRG v43.0 code catalog from the CMS definition files and assigns\n" +
		"DRGs to inpatient encounters, one at a time or in batches from CSV/Parquet files.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfigFile,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the definition files")
	pf.StringVar(&configPath, "config", "", "YAML config file (file names, workers, log level)")
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
}

// loadConfigFile merges --config into cfg. Flags given on the command line
// win over the file.
func loadConfigFile(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		return nil
	}
	flagged := cfg
	if err := cfg.LoadFromFile(configPath); err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("data-dir") {
		cfg.DataDir = flagged.DataDir
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flagged.LogLevel
	}
	if f.Lookup("workers") != nil && f.Changed("workers") {
		cfg.Workers = flagged.Workers
	}
	if f.Lookup("run-label") != nil && f.Changed("run-label") {
		cfg.RunLabel = flagged.RunLabel
	}
	return nil
}
