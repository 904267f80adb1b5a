package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trafficsnap/internal/blob"
	"trafficsnap/internal/db"
	"trafficsnap/internal/exitcode"
	"trafficsnap/internal/ingest"
	"trafficsnap/internal/logging"
	"trafficsnap/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Freeze a traffic export CSV as a version snapshot",
	RunE:  runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Path to traffic export CSV (required)")
	f.StringVar(&cfg.OwnerID, "owner", "", "Owner id (required)")
	f.StringVar(&cfg.ChannelID, "channel", "", "Channel id (required)")
	f.StringVar(&cfg.VideoID, "video", "", "Video id (required)")
	f.Int32Var(&cfg.Version, "version", 0, "Version to freeze (default: active version + 1)")
	f.BoolVar(&cfg.Force, "force", false, "Re-import even if this file SHA was already frozen")
	_ = ingestCmd.MarkFlagRequired("file")
	_ = ingestCmd.MarkFlagRequired("owner")
	_ = ingestCmd.MarkFlagRequired("channel")
	_ = ingestCmd.MarkFlagRequired("video")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	snapshots := store.NewSnapshotStore(pool, blob.NewStore(cfg.BlobRoot), cfg.KeywordTable(), log)

	summary, err := ingest.Run(ctx, pool, snapshots, log, &cfg)
	if err != nil {
		if pe, ok := err.(*ingest.PipelineError); ok {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("ingest failed")
			switch pe.Phase {
			case "snapshot":
				os.Exit(exitcode.StorageError)
			default:
				os.Exit(exitcode.ValidationError)
			}
		}
		log.Error().Err(err).Msg("ingest failed")
		os.Exit(exitcode.ValidationError)
	}

	fmt.Printf("Ingest complete: snapshot %s (version %d, %d rows, %.1fs)\n",
		summary.SnapshotID, summary.Version, summary.RowsParsed, summary.DurationTotal.Seconds())
	return nil
}
