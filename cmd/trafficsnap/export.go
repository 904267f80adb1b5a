package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trafficsnap/internal/blob"
	"trafficsnap/internal/db"
	"trafficsnap/internal/exitcode"
	"trafficsnap/internal/export"
	"trafficsnap/internal/logging"
	"trafficsnap/internal/model"
	"trafficsnap/internal/store"
)

var (
	exportSnapshotID string
	exportOut        string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a snapshot's rows to a Parquet file",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportSnapshotID, "snapshot", "", "Snapshot id to export")
	f.StringVar(&cfg.VideoID, "video", "", "Video id (with --version, instead of --snapshot)")
	f.Int32Var(&cfg.Version, "version", 0, "Version to export (with --video)")
	f.StringVar(&exportOut, "out", "", "Output Parquet path (required)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn or DATABASE_URL is required")
		os.Exit(exitcode.UsageError)
	}
	if exportSnapshotID == "" && (cfg.VideoID == "" || cfg.Version == 0) {
		log.Error().Msg("--snapshot or both --video and --version are required")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	snapshots := store.NewSnapshotStore(pool, blob.NewStore(cfg.BlobRoot), cfg.KeywordTable(), log)

	var snap *model.TrafficSnapshot
	if exportSnapshotID != "" {
		id, err := uuid.Parse(exportSnapshotID)
		if err != nil {
			log.Error().Err(err).Msg("invalid snapshot id")
			os.Exit(exitcode.UsageError)
		}
		snap, err = snapshots.Get(ctx, id)
		if err != nil {
			log.Error().Err(err).Msg("snapshot lookup failed")
			os.Exit(exitcode.ValidationError)
		}
	} else {
		snap, err = snapshots.GetByVersion(ctx, cfg.VideoID, cfg.Version)
		if err != nil {
			log.Error().Err(err).Msg("snapshot lookup failed")
			os.Exit(exitcode.ValidationError)
		}
	}

	res, err := snapshots.Load(ctx, snap)
	if err != nil {
		log.Error().Err(err).Msg("snapshot load failed")
		os.Exit(exitcode.StorageError)
	}

	out, err := os.Create(exportOut)
	if err != nil {
		log.Error().Err(err).Msg("failed to create output file")
		os.Exit(exitcode.StorageError)
	}
	defer out.Close()

	n, err := export.Write(out, snap, res)
	if err != nil {
		log.Error().Err(err).Msg("export failed")
		os.Exit(exitcode.StorageError)
	}

	fmt.Printf("Exported %d rows from snapshot %s to %s\n", n, snap.SnapshotID, exportOut)
	return nil
}
