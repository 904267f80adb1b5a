package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"trafficsnap/internal/blob"
	"trafficsnap/internal/db"
	"trafficsnap/internal/exitcode"
	"trafficsnap/internal/lifecycle"
	"trafficsnap/internal/logging"
	"trafficsnap/internal/store"
)

var (
	restoreTarget int32
	restoreSkip   bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a packaging version, preserving current traffic as a snapshot",
	Long: "Restores the target version as the active packaging state. The version " +
		"currently being edited is frozen first: pass --file with its traffic export, " +
		"or --skip to preserve whatever live traffic rows exist.",
	RunE: runRestore,
}

func init() {
	f := restoreCmd.Flags()
	f.StringVar(&cfg.OwnerID, "owner", "", "Owner id (required)")
	f.StringVar(&cfg.ChannelID, "channel", "", "Channel id (required)")
	f.StringVar(&cfg.VideoID, "video", "", "Video id (required)")
	f.Int32Var(&restoreTarget, "target", 0, "Version to restore (required)")
	f.StringVar(&cfg.FilePath, "file", "", "Traffic export CSV freezing the version being replaced")
	f.BoolVar(&restoreSkip, "skip", false, "Skip the upload; snapshot live traffic rows instead")
	_ = restoreCmd.MarkFlagRequired("owner")
	_ = restoreCmd.MarkFlagRequired("channel")
	_ = restoreCmd.MarkFlagRequired("video")
	_ = restoreCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(restoreCmd)
}

// consolePrompter announces the snapshot request; the answer arrives via
// the --file / --skip flags in the same invocation.
type consolePrompter struct{}

func (consolePrompter) PromptUpload(ctx context.Context, req lifecycle.PromptRequest) error {
	fmt.Printf("Snapshot requested for video %s before restoring version %d\n", req.Ref.VideoID, req.Version)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn or DATABASE_URL is required")
		os.Exit(exitcode.UsageError)
	}
	if (cfg.FilePath != "") == restoreSkip {
		log.Error().Msg("exactly one of --file or --skip is required")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	snapshots := store.NewSnapshotStore(pool, blob.NewStore(cfg.BlobRoot), cfg.KeywordTable(), log)
	history := store.NewVersionHistory(pool, log)
	live := store.NewLiveTraffic(pool, log)

	coord := lifecycle.NewCoordinator(history, live, snapshots, consolePrompter{}, cfg.KeywordTable(), log)

	done, err := coord.RequestSnapshotForRestore(ctx, restoreTarget, cfg.Ref())
	if err != nil {
		log.Error().Err(err).Msg("restore request failed")
		os.Exit(exitcode.ValidationError)
	}

	if restoreSkip {
		err = coord.OnSkip(ctx)
	} else {
		data, readErr := os.ReadFile(cfg.FilePath)
		if readErr != nil {
			log.Error().Err(readErr).Msg("failed to read export file")
			os.Exit(exitcode.ValidationError)
		}
		file := store.SourceFile{Name: filepath.Base(cfg.FilePath), Text: string(data)}
		err = coord.OnUpload(ctx, file, cfg.UserMapping())
	}
	if err != nil {
		log.Error().Err(err).Msg("restore failed")
		os.Exit(exitcode.StorageError)
	}

	r := <-done
	if r.Err != nil {
		log.Error().Err(r.Err).Msg("restore failed")
		os.Exit(exitcode.StorageError)
	}
	if r.SnapshotID != nil {
		fmt.Printf("Version %d restored; replaced traffic frozen as snapshot %s\n", restoreTarget, r.SnapshotID)
	} else {
		fmt.Printf("Version %d restored; no traffic to preserve\n", restoreTarget)
	}
	return nil
}
