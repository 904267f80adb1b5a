package main

import (
	"os"

	"github.com/spf13/cobra"

	"trafficsnap/internal/config"
)

var cfg config.Config

var configFile string

var rootCmd = &cobra.Command{
	Use:   "trafficsnap",
	Short: "Traffic snapshot and reconciliation engine",
	Long:  "Freezes analytics traffic exports as immutable per-version snapshots and repairs missing video metadata through the catalog API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile == "" {
			return nil
		}
		return cfg.LoadFromFile(configFile)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.BlobRoot, "blob-root", envOr("TRAFFICSNAP_BLOB_ROOT", "snapshots"), "Snapshot blob storage root directory")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&configFile, "config", "", "YAML config file with column keyword overrides or an explicit mapping")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
