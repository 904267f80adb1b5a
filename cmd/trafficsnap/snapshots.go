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
	"trafficsnap/internal/logging"
	"trafficsnap/internal/store"
)

var deleteSnapshotID string

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect and manage frozen snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a video's snapshots, newest version first",
	RunE:  runSnapshotsList,
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a snapshot document and its blob",
	RunE:  runSnapshotsDelete,
}

func init() {
	snapshotsListCmd.Flags().StringVar(&cfg.VideoID, "video", "", "Video id (required)")
	_ = snapshotsListCmd.MarkFlagRequired("video")

	snapshotsDeleteCmd.Flags().StringVar(&deleteSnapshotID, "snapshot", "", "Snapshot id (required)")
	_ = snapshotsDeleteCmd.MarkFlagRequired("snapshot")

	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsDeleteCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func openSnapshotStore(ctx context.Context) (*store.SnapshotStore, func(), error) {
	log := logging.Setup(cfg.LogFormat)
	if cfg.DSN == "" {
		return nil, nil, fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store.NewSnapshotStore(pool, blob.NewStore(cfg.BlobRoot), cfg.KeywordTable(), log), pool.Close, nil
}

func runSnapshotsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	snapshots, closePool, err := openSnapshotStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.DBConnError)
	}
	defer closePool()

	list, err := snapshots.ListByVideo(ctx, cfg.VideoID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.DBConnError)
	}
	if len(list) == 0 {
		fmt.Printf("No snapshots for video %s\n", cfg.VideoID)
		return nil
	}

	fmt.Printf("%-38s %-8s %-10s %-20s %s\n", "SNAPSHOT", "VERSION", "STORAGE", "CREATED", "SOURCE FILE")
	for _, s := range list {
		storage := "inline"
		if s.HasBlob() {
			storage = "blob"
		}
		fileName := ""
		if s.SourceFileName != nil {
			fileName = *s.SourceFileName
		}
		fmt.Printf("%-38s %-8d %-10s %-20s %s\n",
			s.SnapshotID, s.Version, storage, s.CreatedAt.Format("2006-01-02 15:04:05"), fileName)
	}
	return nil
}

func runSnapshotsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	snapshots, closePool, err := openSnapshotStore(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.DBConnError)
	}
	defer closePool()

	id, err := uuid.Parse(deleteSnapshotID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid snapshot id:", err)
		os.Exit(exitcode.UsageError)
	}

	if err := snapshots.Delete(ctx, id); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.StorageError)
	}
	fmt.Printf("Deleted snapshot %s\n", id)
	return nil
}
